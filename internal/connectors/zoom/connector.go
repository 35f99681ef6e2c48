// Package zoom lists the caller's recent Zoom cloud recordings as cards.
package zoom

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

// Type is the connector type identifier used in configuration.
const Type = "zoom"

const (
	recordingsPath      = "/v2/users/me/recordings"
	defaultLookbackDays = 7
	pageSize            = 30
)

// Register registers the Zoom connector factory.
func Register() {
	if connector.IsRegistered(Type) {
		return
	}
	connector.RegisterFactory(connector.Factory{
		Type:        Type,
		Description: "Zoom cloud recordings",
		Create:      New,
	})
}

type recordingList struct {
	From          string    `json:"from"`
	To            string    `json:"to"`
	NextPageToken string    `json:"next_page_token"`
	Meetings      []meeting `json:"meetings"`
}

type meeting struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	Topic          string          `json:"topic"`
	StartTime      string          `json:"start_time"`
	Duration       int             `json:"duration"`
	ShareURL       string          `json:"share_url"`
	RecordingCount int             `json:"recording_count"`
	RecordingFiles []recordingFile `json:"recording_files"`
}

type recordingFile struct {
	FileType string `json:"file_type"`
	PlayURL  string `json:"play_url"`
	FileSize int64  `json:"file_size"`
	Status   string `json:"status"`
}

type Connector struct {
	backend  *connector.Backend
	lookback int
	now      func() time.Time
}

// New creates the connector from shared dependencies.
func New(deps connector.Deps) (connector.Connector, error) {
	lookback := defaultLookbackDays
	if deps.Config != nil && deps.Config.Zoom.LookbackDays > 0 {
		lookback = deps.Config.Zoom.LookbackDays
	}
	return &Connector{
		backend:  deps.Backend(Type),
		lookback: lookback,
		now:      time.Now,
	}, nil
}

func (c *Connector) Name() string { return Type }

func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		ObjectType:   connector.ObjectTypeCard,
		EndpointPath: "/cards/requests",
		DocURL:       "https://developers.zoom.us/docs/api/rest/reference/zoom-api/methods/#operation/recordingsList",
		Pollable:     true,
	}
}

func (c *Connector) Routes(r chi.Router) {
	r.Post("/cards/requests", connector.HandleCards(Type, c.cards))
}

func (c *Connector) cards(ctx context.Context, rc *connector.RequestContext, _ connector.CardRequest) ([]connector.Card, error) {
	to := c.now().UTC()
	from := to.AddDate(0, 0, -c.lookback)

	var list recordingList
	err := c.backend.Get(ctx, rc, recordingsPath, url.Values{
		"from":      {from.Format(time.DateOnly)},
		"to":        {to.Format(time.DateOnly)},
		"page_size": {strconv.Itoa(pageSize)},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	cards := make([]connector.Card, 0, len(list.Meetings))
	for _, m := range list.Meetings {
		cards = append(cards, toCard(rc, m))
	}
	return cards, nil
}

func toCard(rc *connector.RequestContext, m meeting) connector.Card {
	topic := m.Topic
	if topic == "" {
		topic = "Untitled meeting"
	}

	var actions []connector.Action
	if m.ShareURL != "" {
		actions = append(actions, connector.NewOpenInAction("Watch Recording", m.ShareURL, connector.Primary()))
	}

	return connector.NewCard(connector.CardSpec{
		Name:         "Zoom",
		CreationDate: m.StartTime,
		Header: connector.Header{
			Title:    "Zoom recording",
			Subtitle: []string{topic},
		},
		Body: connector.Body{
			Description: "Your recording of " + topic + " is ready",
			Fields: []connector.Field{
				connector.GeneralField("Started", m.StartTime),
				connector.GeneralField("Duration", fmt.Sprintf("%d min", m.Duration)),
				connector.GeneralField("Files", fileSummary(m.RecordingFiles)),
			},
		},
		Actions: actions,
		Key:     []string{rc.UserKey(), m.UUID, m.StartTime},
		Hashed:  true,
	})
}

// fileSummary counts finished recording files per type, e.g. "MP4, M4A".
func fileSummary(files []recordingFile) string {
	seen := map[string]bool{}
	var out string
	for _, f := range files {
		if f.Status != "" && f.Status != "completed" {
			continue
		}
		if f.FileType == "" || seen[f.FileType] {
			continue
		}
		seen[f.FileType] = true
		if out != "" {
			out += ", "
		}
		out += f.FileType
	}
	if out == "" {
		return "Not Available"
	}
	return out
}
