// Package dynamics is a bot connector answering "what are my open cases"
// from Dynamics 365 Customer Service.
package dynamics

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "dynamics"

const (
	defaultMaxResults = 5
	notAvailable      = "Not Available"
)

// Register registers the Dynamics connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "Dynamics 365 open cases (bot)",
		Create:      New,
	})
}

type Connector struct {
	client     *client
	maxResults int
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	maxResults := defaultMaxResults
	if deps.Config != nil && deps.Config.Dynamics.MaxResults > 0 {
		maxResults = deps.Config.Dynamics.MaxResults
	}
	b := deps.Backend(Type,
		connector.WithHeader("OData-MaxVersion", "4.0"),
		connector.WithHeader("OData-Version", "4.0"),
		connector.WithHeader("Prefer", preferFormatted),
	)
	return &Connector{client: &client{backend: b}, maxResults: maxResults}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeBotDiscovery,
		EndpointPath: "/bot/discovery",
		DocURL:       "https://learn.microsoft.com/en-us/power-apps/developer/data-platform/webapi/overview",
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/bot/discovery", connector.HandleBotDiscovery(commands))
	r.Post("/bot/cases", connector.HandleBot(Type, c.cases))
}

func commands(rc *connector.RequestContext) []connector.BotObject {
	return []connector.BotObject{
		connector.NewBotCommand(rc, "My open cases", "Show the newest cases assigned to me", "/bot/cases"),
	}
}

func (c *Connector) cases(ctx context.Context, rc *connector.RequestContext, _ *http.Request) ([]connector.BotObject, error) {
	who, err := c.client.whoAmI(ctx, rc)
	if err != nil {
		return nil, err
	}

	cases, err := c.client.openCases(ctx, rc, who.UserID, c.maxResults)
	if err != nil {
		return nil, err
	}
	return toBotObjects(rc, cases), nil
}

func toBotObjects(rc *connector.RequestContext, cases []incident) []connector.BotObject {
	items := make([]connector.BotObject, 0, len(cases))
	for _, inc := range cases {
		items = append(items, toBotObject(rc, inc))
	}

	viewAll := rc.BaseURL + "/main.aspx?" + url.Values{
		"pagetype": {"entitylist"},
		"etn":      {"incident"},
	}.Encode()
	return connector.BracketResults(items, connector.ResultMessages{
		Lead:     connector.NewBotMessage("Here are your open cases", ""),
		Trailing: connector.NewBotLink("View all cases", "Open your active cases in Dynamics", viewAll),
		Empty:    connector.NewBotMessage("No cases found", "You have no open cases assigned to you."),
	})
}

func toBotObject(rc *connector.RequestContext, inc incident) connector.BotObject {
	description := notAvailable
	if inc.Description != nil && *inc.Description != "" {
		description = *inc.Description
	}

	subtitle := inc.TicketNumber
	if inc.Priority != "" {
		subtitle += " (" + inc.Priority + ")"
	}

	o := connector.NewBotLink(inc.Title, description, recordURL(rc, inc.ID))
	o.ItemDetails.Subtitle = subtitle
	o.ItemDetails.BackendID = connector.EncodeBackendID(rc.UserKey(), inc.ID, inc.CreatedOn)
	return o
}

func recordURL(rc *connector.RequestContext, id string) string {
	return rc.BaseURL + "/main.aspx?" + url.Values{
		"pagetype": {"entityrecord"},
		"etn":      {"incident"},
		"id":       {id},
	}.Encode()
}
