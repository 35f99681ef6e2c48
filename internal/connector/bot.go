package connector

import (
	"net/http"

	"github.com/google/uuid"
)

// BotObject is one message in a bot conversation.
type BotObject struct {
	ItemDetails BotItem `json:"itemDetails"`
}

type BotItem struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         *Link       `json:"url,omitempty"`
	Image       *Link       `json:"image,omitempty"`
	Type        string      `json:"type,omitempty"`
	BackendID   string      `json:"backend_id,omitempty"`
	Actions     []BotAction `json:"actions,omitempty"`
}

// BotAction is an action offered from a bot message.
type BotAction struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`
	URL         Link              `json:"url"`
	Payload     map[string]string `json:"payload,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	UserInput   []UserInput       `json:"userInput,omitempty"`
}

// NewBotMessage is a plain text message.
func NewBotMessage(title, description string) BotObject {
	return BotObject{ItemDetails: BotItem{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Type:        "text",
	}}
}

// NewBotLink is a message pointing at a backend page.
func NewBotLink(title, description, href string) BotObject {
	o := NewBotMessage(title, description)
	o.ItemDetails.URL = &Link{Href: href}
	return o
}

// NewBotCommand is a bot discovery entry that posts to a connector path,
// optionally asking the user for input first.
func NewBotCommand(rc *RequestContext, title, description, path string, inputs ...UserInput) BotObject {
	action := NewBotAction(rc, title, description, path, nil)
	action.UserInput = inputs

	o := NewBotMessage(title, description)
	o.ItemDetails.Actions = []BotAction{action}
	return o
}

// NewBotAction builds a POST action against a connector path.
func NewBotAction(rc *RequestContext, title, description, path string, payload map[string]string) BotAction {
	return BotAction{
		Title:       title,
		Description: description,
		Type:        http.MethodPost,
		URL:         Link{Href: rc.ActionURL(path)},
		Payload:     payload,
		Headers:     map[string]string{"Content-Type": "application/json"},
	}
}

// ResultMessages are the messages that bracket a bot result list.
type ResultMessages struct {
	Lead     BotObject
	Trailing BotObject
	Empty    BotObject
}

// BracketResults returns [lead, items..., trailing] for a non-empty list
// and [empty] otherwise.
func BracketResults(items []BotObject, msgs ResultMessages) []BotObject {
	if len(items) == 0 {
		return []BotObject{msgs.Empty}
	}
	out := make([]BotObject, 0, len(items)+2)
	out = append(out, msgs.Lead)
	out = append(out, items...)
	out = append(out, msgs.Trailing)
	return out
}

// BotDiscovery is the answer to POST /bot/discovery: the commands a bot
// connector offers.
type BotDiscovery struct {
	Objects []BotDiscoveryGroup `json:"objects"`
}

type BotDiscoveryGroup struct {
	Children []BotObject `json:"children"`
}
