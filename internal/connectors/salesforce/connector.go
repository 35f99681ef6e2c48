// Package salesforce shows the Salesforce contacts behind the email senders
// the hub extracted, with their accounts' open opportunities, and logs
// activities against them.
package salesforce

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "salesforce"

// maxSenders bounds the contacts looked up per card request.
const maxSenders = 10

// Register registers the Salesforce connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "Salesforce contacts and opportunities",
		Create:      New,
	})
}

type Connector struct {
	client *client
	logger *slog.Logger
	now    func() time.Time
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		client: &client{backend: deps.Backend(Type, connector.WithAuthClassifier(authClassifier))},
		logger: logger,
		now:    time.Now,
	}, nil
}

// senderPattern captures the address of a From header, with or without a
// display name.
const senderPattern = `(?i)^from:\s*(?:[^<\n]*<)?([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})>?`

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeCard,
		EndpointPath: "/cards/requests",
		Pollable:     false,
		Fields: map[string]connector.TokenField{
			"email": {CaptureGroup: 1, Regex: senderPattern},
		},
		ActionPaths: map[string]string{
			"log-activity": "/api/v1/contacts/{contactID}/log-activity",
		},
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/cards/requests", connector.HandleCards(Type, c.cards))
	r.Post("/api/v1/contacts/{contactID}/log-activity", connector.HandleAction(Type, "log-activity", c.logActivity))
}

func (c *Connector) cards(ctx context.Context, rc *connector.RequestContext, req connector.CardRequest) ([]connector.Card, error) {
	senders := req.Token("email")
	if len(senders) > maxSenders {
		senders = senders[:maxSenders]
	}

	// Senders are independent; each resolves its contacts and then, per
	// contact, the opportunities of its account.
	perSender := make([][]contactDetail, len(senders))
	g, gctx := errgroup.WithContext(ctx)
	for i, email := range senders {
		i, email := i, email
		g.Go(func() error {
			contacts, err := c.client.contactsByEmail(gctx, rc, email, rc.Identity.Email)
			if err != nil {
				return err
			}
			details := make([]contactDetail, 0, len(contacts))
			for _, ct := range contacts {
				d := contactDetail{Contact: ct}
				if ct.AccountID != nil && *ct.AccountID != "" {
					d.Opportunities, err = c.client.openOpportunities(gctx, rc, *ct.AccountID)
					if err != nil {
						return err
					}
				}
				details = append(details, d)
			}
			perSender[i] = details
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cards []connector.Card
	for _, details := range perSender {
		for _, d := range details {
			cards = append(cards, toCard(rc, d))
		}
	}
	return cards, nil
}

type logActivityRequest struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Comment string `json:"comment" validate:"max=32000"`
}

func (c *Connector) logActivity(ctx context.Context, rc *connector.RequestContext, r *http.Request) error {
	var body logActivityRequest
	if err := connector.DecodeAction(r, &body); err != nil {
		return err
	}

	return c.client.createTask(ctx, rc, task{
		WhoID:        chi.URLParam(r, "contactID"),
		Subject:      body.Subject,
		Description:  body.Comment,
		Status:       "Completed",
		ActivityDate: c.now().UTC().Format(time.DateOnly),
	})
}
