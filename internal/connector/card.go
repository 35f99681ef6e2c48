package connector

import (
	"net/http"

	"github.com/google/uuid"
)

// ActionKey tells the hub how to present an action.
type ActionKey string

const (
	// ActionDirect posts the request payload as is.
	ActionDirect ActionKey = "DIRECT"
	// ActionUserInput collects user_input fields before posting.
	ActionUserInput ActionKey = "USER_INPUT"
	// ActionOpenIn opens url.href in the client.
	ActionOpenIn ActionKey = "OPEN_IN"
)

// FieldGeneral is the plain title/description body field.
const FieldGeneral = "GENERAL"

// FieldComment renders content entries as a list.
const FieldComment = "COMMENT"

type Link struct {
	Href string `json:"href"`
}

// Card is the hub's presentation unit for one backend record.
type Card struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name,omitempty"`
	CreationDate string    `json:"creation_date,omitempty"`
	BackendID    string    `json:"backend_id"`
	Hash         string    `json:"hash,omitempty"`
	Header       Header    `json:"header"`
	Body         Body      `json:"body"`
	Actions      []Action  `json:"actions"`
	Image        *Link     `json:"image,omitempty"`
}

type Header struct {
	Title    string   `json:"title"`
	Subtitle []string `json:"subtitle,omitempty"`
}

type Body struct {
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

type Field struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     []FieldContent `json:"content,omitempty"`
}

type FieldContent struct {
	Text string `json:"text"`
}

// GeneralField builds a GENERAL body field.
func GeneralField(title, description string) Field {
	return Field{Type: FieldGeneral, Title: title, Description: description}
}

// Action is an operation the user can trigger from a card.
type Action struct {
	ID                     uuid.UUID         `json:"id"`
	ActionKey              ActionKey         `json:"action_key"`
	Label                  string            `json:"label"`
	CompletedLabel         string            `json:"completed_label,omitempty"`
	Type                   string            `json:"type"`
	Primary                bool              `json:"primary"`
	URL                    Link              `json:"url"`
	Request                map[string]string `json:"request"`
	UserInput              []UserInput       `json:"user_input"`
	AllowRepeated          bool              `json:"allow_repeated"`
	RemoveCardOnCompletion bool              `json:"remove_card_on_completion"`
}

// UserInput describes one field the hub asks the user to fill in.
type UserInput struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	MinLength int    `json:"min_length,omitempty"`
	Format    string `json:"format,omitempty"`
}

// ActionOption adjusts an action while it is constructed.
type ActionOption func(*Action)

func Primary() ActionOption {
	return func(a *Action) { a.Primary = true }
}

func CompletedLabel(label string) ActionOption {
	return func(a *Action) { a.CompletedLabel = label }
}

func RemoveCardOnCompletion() ActionOption {
	return func(a *Action) { a.RemoveCardOnCompletion = true }
}

func AllowRepeated() ActionOption {
	return func(a *Action) { a.AllowRepeated = true }
}

// WithUserInput turns the action into a USER_INPUT action.
func WithUserInput(inputs ...UserInput) ActionOption {
	return func(a *Action) {
		a.ActionKey = ActionUserInput
		a.UserInput = append(a.UserInput, inputs...)
	}
}

// NewAction builds a POST action against a connector path under the routing
// prefix of rc.
func NewAction(rc *RequestContext, label, path string, request map[string]string, opts ...ActionOption) Action {
	if request == nil {
		request = map[string]string{}
	}
	a := Action{
		ID:        uuid.New(),
		ActionKey: ActionDirect,
		Label:     label,
		Type:      http.MethodPost,
		URL:       Link{Href: rc.ActionURL(path)},
		Request:   request,
		UserInput: []UserInput{},
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// NewOpenInAction builds an action that opens href, typically a vendor page.
func NewOpenInAction(label, href string, opts ...ActionOption) Action {
	a := Action{
		ID:        uuid.New(),
		ActionKey: ActionOpenIn,
		Label:     label,
		Type:      http.MethodGet,
		URL:       Link{Href: href},
		Request:   map[string]string{},
		UserInput: []UserInput{},
		// Opening a link never completes the card.
		AllowRepeated: true,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// CardSpec is what a mapper knows about a card before identity is attached.
type CardSpec struct {
	Name         string
	CreationDate string
	Header       Header
	Body         Body
	Actions      []Action
	Image        *Link

	// Key is the natural key of the record: user, record id and creation
	// timestamp as reported by the backend.
	Key []string

	// Hashed adds a content hash over Header and Body.
	Hashed bool
}

// NewCard attaches a random id, the deterministic backend id and, when
// requested, the content hash.
func NewCard(spec CardSpec) Card {
	actions := spec.Actions
	if actions == nil {
		actions = []Action{}
	}
	c := Card{
		ID:           uuid.New(),
		Name:         spec.Name,
		CreationDate: spec.CreationDate,
		BackendID:    EncodeBackendID(spec.Key...),
		Header:       spec.Header,
		Body:         spec.Body,
		Actions:      actions,
		Image:        spec.Image,
	}
	if spec.Hashed {
		c.Hash = ContentHash(map[string]any{
			"header": spec.Header,
			"body":   spec.Body,
		})
	}
	return c
}
