// Package adobesign surfaces Adobe Sign agreements that wait for the
// caller's signature or for other participants.
package adobesign

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "adobesign"

// maxAgreements bounds the agreements turned into cards per request.
const maxAgreements = 20

// Register registers the Adobe Sign connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "Adobe Sign agreements",
		Create:      New,
	})
}

type Connector struct {
	client *client
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	return &Connector{client: &client{backend: deps.Backend(Type)}}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeCard,
		EndpointPath: "/cards/requests",
		DocURL:       "https://secure.adobesign.com/public/docs/restapi/v6",
		Pollable:     true,
		ActionPaths: map[string]string{
			"remind": "/api/v1/agreements/remind",
		},
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/cards/requests", connector.HandleCards(Type, c.cards))
	r.Post("/api/v1/agreements/remind", connector.HandleAction(Type, "remind", c.remind))
}

func (c *Connector) cards(ctx context.Context, rc *connector.RequestContext, _ connector.CardRequest) ([]connector.Card, error) {
	all, err := c.client.agreements(ctx, rc)
	if err != nil {
		return nil, err
	}

	var open []agreementSummary
	for _, s := range all {
		if s.Status == statusWaitingForMe || s.Status == statusOutForSignature {
			open = append(open, s)
		}
		if len(open) == maxAgreements {
			break
		}
	}

	details := make([]agreementDetail, len(open))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range open {
		i, s := i, s
		g.Go(func() error {
			d, err := c.client.detail(gctx, rc, s)
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

type remindRequest struct {
	AgreementID string `json:"agreement_id" validate:"required"`
	Comment     string `json:"comment" validate:"max=2000"`
}

var errNoPendingParticipants = errors.New("agreement has no participants left to remind")

func (c *Connector) remind(ctx context.Context, rc *connector.RequestContext, r *http.Request) error {
	var body remindRequest
	if err := connector.DecodeAction(r, &body); err != nil {
		return err
	}

	m, err := c.client.members(ctx, rc, body.AgreementID)
	if err != nil {
		return err
	}
	recipients := m.pendingParticipants(rc.Identity.Email)
	if len(recipients) == 0 {
		return &connector.RequestError{Err: errNoPendingParticipants}
	}

	return c.client.remind(ctx, rc, body.AgreementID, reminder{
		RecipientParticipantIDs: recipients,
		Status:                  "ACTIVE",
		Note:                    body.Comment,
	})
}
