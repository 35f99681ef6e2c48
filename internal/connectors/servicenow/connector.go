// Package servicenow turns pending ServiceNow catalog approvals into cards
// that can be approved or rejected from the hub.
package servicenow

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "servicenow"

const approvalsLimit = 10

// Register registers the ServiceNow connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "ServiceNow catalog request approvals",
		Create:      New,
	})
}

type Connector struct {
	client *client
	logger *slog.Logger
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		client: &client{backend: deps.Backend(Type)},
		logger: logger,
	}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeCard,
		EndpointPath: "/cards/requests",
		DocURL:       "https://docs.servicenow.com/bundle/rest-api/page/integrate/inbound-rest/concept/c_TableAPI.html",
		Pollable:     true,
		ActionPaths: map[string]string{
			"approve": "/api/v1/approve",
			"reject":  "/api/v1/reject",
		},
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/cards/requests", connector.HandleCards(Type, c.cards))
	r.Post("/api/v1/approve", connector.HandleAction(Type, "approve", c.approve))
	r.Post("/api/v1/reject", connector.HandleAction(Type, "reject", c.reject))
}

func (c *Connector) cards(ctx context.Context, rc *connector.RequestContext, _ connector.CardRequest) ([]connector.Card, error) {
	email := rc.Identity.Email
	if email == "" {
		c.logger.WarnContext(ctx, "hub token carries no email, no approvals to look up",
			slog.String("request_id", rc.RequestID))
		return nil, nil
	}

	userID, err := c.client.userSysID(ctx, rc, email)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, nil
	}

	approvals, err := c.client.pendingApprovals(ctx, rc, userID, approvalsLimit)
	if err != nil {
		return nil, err
	}

	details := make([]approvalDetail, len(approvals))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range approvals {
		i, a := i, a
		g.Go(func() error {
			d, err := c.client.detail(gctx, rc, a)
			if err != nil {
				return err
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cards := make([]connector.Card, 0, len(details))
	for _, d := range details {
		cards = append(cards, toCard(rc, d))
	}
	return cards, nil
}

type approveRequest struct {
	RequestID string `json:"request_id" validate:"required"`
}

type rejectRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	Comment   string `json:"comment" validate:"required,max=4000"`
}

func (c *Connector) approve(ctx context.Context, rc *connector.RequestContext, r *http.Request) error {
	var body approveRequest
	if err := connector.DecodeAction(r, &body); err != nil {
		return err
	}
	return c.client.setState(ctx, rc, body.RequestID, "approved", "")
}

func (c *Connector) reject(ctx context.Context, rc *connector.RequestContext, r *http.Request) error {
	var body rejectRequest
	if err := connector.DecodeAction(r, &body); err != nil {
		return err
	}
	return c.client.setState(ctx, rc, body.RequestID, "rejected", body.Comment)
}
