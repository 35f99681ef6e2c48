// Package airwatch offers Workspace ONE UEM app installs when an email
// mentions one of the configured apps.
package airwatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
	"github.com/tjfontaine/polyglot-connectors/internal/pkg/config"
)

// Type is the connector type identifier used in configuration.
const Type = "airwatch"

// Register registers the AirWatch connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:           Type,
		Description:    "Workspace ONE UEM (AirWatch) app installs",
		Create:         New,
		ValidateConfig: ValidateConfig,
	})
}

// ValidateConfig checks the tenant code and the app catalog.
func ValidateConfig(cfg *config.Config) error {
	if cfg.AirWatch.TenantCode == "" {
		return errors.New("airwatch.tenant_code is required")
	}
	if len(cfg.AirWatch.Apps) == 0 {
		return errors.New("airwatch.apps must list at least one app")
	}
	for i, app := range cfg.AirWatch.Apps {
		if app.Name == "" || app.Platform == "" {
			return fmt.Errorf("airwatch.apps[%d] needs a name and a platform", i)
		}
		if len(app.Keywords) == 0 {
			return fmt.Errorf("airwatch.apps[%d] needs at least one keyword", i)
		}
	}
	return nil
}

type Connector struct {
	client *client
	apps   []config.AirWatchApp
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	var tenant string
	var apps []config.AirWatchApp
	if deps.Config != nil {
		tenant = deps.Config.AirWatch.TenantCode
		apps = deps.Config.AirWatch.Apps
	}
	return &Connector{
		client: &client{backend: deps.Backend(Type, connector.WithHeader(tenantCodeHeader, tenant))},
		apps:   apps,
	}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	d := connector.Descriptor{
		ObjectType:   connector.ObjectTypeCard,
		EndpointPath: "/cards/requests",
		ActionPaths: map[string]string{
			"install": "/api/v1/apps/install",
		},
	}
	if pattern := keywordPattern(c.apps); pattern != "" {
		d.Fields = map[string]connector.TokenField{
			"app_keywords": {CaptureGroup: 1, Regex: pattern},
		}
	}
	return d
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/cards/requests", connector.HandleCards(Type, c.cards))
	r.Post("/api/v1/apps/install", connector.HandleAction(Type, "install", c.install))
}

func (c *Connector) cards(_ context.Context, rc *connector.RequestContext, req connector.CardRequest) ([]connector.Card, error) {
	mentioned := map[string]bool{}
	for _, kw := range req.Token("app_keywords") {
		mentioned[strings.ToLower(kw)] = true
	}

	var cards []connector.Card
	for _, app := range c.apps {
		if !mentionsApp(app, mentioned) {
			continue
		}
		cards = append(cards, toCard(rc, app))
	}
	return cards, nil
}

func mentionsApp(app config.AirWatchApp, mentioned map[string]bool) bool {
	for _, kw := range app.Keywords {
		if mentioned[strings.ToLower(kw)] {
			return true
		}
	}
	return false
}

func toCard(rc *connector.RequestContext, app config.AirWatchApp) connector.Card {
	return connector.NewCard(connector.CardSpec{
		Name: "AirWatch",
		Header: connector.Header{
			Title:    "AirWatch - install " + app.Name,
			Subtitle: []string{app.Platform},
		},
		Body: connector.Body{
			Description: "Install " + app.Name + " on your " + app.Platform + " device",
		},
		Actions: []connector.Action{
			connector.NewAction(rc, "Install", "/api/v1/apps/install",
				map[string]string{"app_name": app.Name, "platform": app.Platform},
				connector.Primary(),
				connector.CompletedLabel("Installing"),
			),
		},
		Key:    []string{rc.UserKey(), app.Name, app.Platform},
		Hashed: true,
	})
}

type installBody struct {
	AppName  string `json:"app_name" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

func (c *Connector) install(ctx context.Context, rc *connector.RequestContext, r *http.Request) error {
	var body installBody
	if err := connector.DecodeAction(r, &body); err != nil {
		return err
	}

	d, app, err := c.client.installTarget(ctx, rc, body.AppName, body.Platform)
	if err != nil {
		return err
	}
	return c.client.install(ctx, rc, app.ID.Value, d.ID.Value)
}

// keywordPattern matches any configured keyword as a whole word.
func keywordPattern(apps []config.AirWatchApp) string {
	var words []string
	for _, app := range apps {
		for _, kw := range app.Keywords {
			words = append(words, regexp.QuoteMeta(kw))
		}
	}
	if len(words) == 0 {
		return ""
	}
	return `(?i)\b(` + strings.Join(words, "|") + `)\b`
}
