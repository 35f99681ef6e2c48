// Package linkedin is a bot connector that searches LinkedIn Learning
// courses by keyword.
package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "linkedin"

const (
	assetsPath   = "/v2/learningAssets"
	searchURL    = "https://www.linkedin.com/learning/search"
	defaultCount = 5
)

// Register registers the LinkedIn Learning connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "LinkedIn Learning course search (bot)",
		Create:      New,
	})
}

// localized is LinkedIn's {"value": "...", "locale": {...}} string.
type localized struct {
	Value string `json:"value"`
}

type assetList struct {
	Elements []asset `json:"elements"`
	Paging   struct {
		Start int `json:"start"`
		Count int `json:"count"`
		Total int `json:"total"`
	} `json:"paging"`
}

type asset struct {
	URN     string       `json:"urn"`
	Type    string       `json:"type"`
	Title   localized    `json:"title"`
	Details assetDetails `json:"details"`
}

type assetDetails struct {
	ShortDescription *localized `json:"shortDescription"`
	PublishedAt      int64      `json:"publishedAt"`
	Level            string     `json:"level"`
	URLs             struct {
		WebLaunch string `json:"webLaunch"`
	} `json:"urls"`
	Images struct {
		Primary string `json:"primary"`
	} `json:"images"`
	TimeToComplete *struct {
		Duration int    `json:"duration"`
		Unit     string `json:"unit"`
	} `json:"timeToComplete"`
}

type Connector struct {
	backend *connector.Backend
	count   int
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	count := defaultCount
	if deps.Config != nil && deps.Config.LinkedIn.Count > 0 {
		count = deps.Config.LinkedIn.Count
	}
	return &Connector{
		backend: deps.Backend(Type, connector.WithHeader("X-Restli-Protocol-Version", "2.0.0")),
		count:   count,
	}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeBotDiscovery,
		EndpointPath: "/bot/discovery",
		DocURL:       "https://learn.microsoft.com/en-us/linkedin/learning/reference/learningassets",
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/bot/discovery", connector.HandleBotDiscovery(commands))
	r.Post("/bot/courses", connector.HandleBot(Type, c.courses))
}

func commands(rc *connector.RequestContext) []connector.BotObject {
	return []connector.BotObject{
		connector.NewBotCommand(rc, "Find a course", "Search LinkedIn Learning courses", "/bot/courses",
			connector.UserInput{ID: "keyword", Label: "What do you want to learn?", MinLength: 1}),
	}
}

type coursesBody struct {
	Keyword string `json:"keyword" validate:"required"`
}

func (c *Connector) courses(ctx context.Context, rc *connector.RequestContext, r *http.Request) ([]connector.BotObject, error) {
	var body coursesBody
	if err := connector.DecodeAction(r, &body); err != nil {
		return nil, err
	}

	var list assetList
	err := c.backend.Get(ctx, rc, assetsPath, url.Values{
		"q":                                     {"criteria"},
		"assetFilteringCriteria.keyword":        {body.Keyword},
		"assetFilteringCriteria.assetTypes[0]":  {"COURSE"},
		"assetRetrievalCriteria.includeRetired": {"false"},
		"assetPresentationCriteria.sortBy":      {"RELEVANCE"},
		"count":                                 {strconv.Itoa(c.count)},
		"start":                                 {"0"},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	return toBotObjects(rc, body.Keyword, list.Elements), nil
}

func toBotObjects(rc *connector.RequestContext, keyword string, assets []asset) []connector.BotObject {
	items := make([]connector.BotObject, 0, len(assets))
	for _, a := range assets {
		items = append(items, toBotObject(rc, a))
	}

	more := searchURL + "?" + url.Values{"keywords": {keyword}}.Encode()
	return connector.BracketResults(items, connector.ResultMessages{
		Lead:     connector.NewBotMessage(fmt.Sprintf("Courses about %q", keyword), ""),
		Trailing: connector.NewBotLink("See more courses", "Browse all results on LinkedIn Learning", more),
		Empty:    connector.NewBotMessage("No courses found", fmt.Sprintf("LinkedIn Learning has no courses matching %q.", keyword)),
	})
}

func toBotObject(rc *connector.RequestContext, a asset) connector.BotObject {
	description := "Not Available"
	if a.Details.ShortDescription != nil && a.Details.ShortDescription.Value != "" {
		description = a.Details.ShortDescription.Value
	}

	o := connector.NewBotLink(a.Title.Value, description, a.Details.URLs.WebLaunch)
	o.ItemDetails.Subtitle = courseLength(a.Details)
	o.ItemDetails.BackendID = connector.EncodeBackendID(rc.UserKey(), a.URN)
	if a.Details.Images.Primary != "" {
		o.ItemDetails.Image = &connector.Link{Href: a.Details.Images.Primary}
	}
	return o
}

// courseLength renders timeToComplete as e.g. "1h 5m".
func courseLength(d assetDetails) string {
	if d.TimeToComplete == nil || d.TimeToComplete.Unit != "SECOND" {
		return ""
	}
	minutes := d.TimeToComplete.Duration / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
