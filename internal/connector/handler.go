package connector

import (
	"context"
	"net/http"

	"github.com/tjfontaine/polyglot-connectors/internal/server"
	"github.com/tjfontaine/polyglot-connectors/internal/telemetry"
)

// CardsFunc produces the cards for one hub request.
type CardsFunc func(ctx context.Context, rc *RequestContext, req CardRequest) ([]Card, error)

// BotFunc produces the bot messages for one hub request. Bot commands carry
// their own body shape, so r is passed unread.
type BotFunc func(ctx context.Context, rc *RequestContext, r *http.Request) ([]BotObject, error)

// ActionFunc performs one mutating backend call. The body of r is still
// unread when the function runs.
type ActionFunc func(ctx context.Context, rc *RequestContext, r *http.Request) error

// CardsResponse is the body returned from card endpoints.
type CardsResponse struct {
	Objects []Card `json:"objects"`
}

// BotResponse is the body returned from bot endpoints.
type BotResponse struct {
	Objects []BotObject `json:"objects"`
}

// HandleCards wires extraction, fn and error classification into a handler.
func HandleCards(connectorName string, fn CardsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.AddLogField(r.Context(), "connector", connectorName)

		rc, err := NewRequestContext(r, ObjectTypeCard)
		if err != nil {
			WriteError(w, r, "cards", err)
			return
		}

		req, err := DecodeCardRequest(r)
		if err != nil {
			WriteError(w, r, "cards", err)
			return
		}

		cards, err := fn(r.Context(), rc, req)
		if err != nil {
			WriteError(w, r, "cards", err)
			return
		}
		if cards == nil {
			cards = []Card{}
		}

		telemetry.ObserveObjects(connectorName, ObjectTypeCard, len(cards))
		WriteJSON(w, http.StatusOK, CardsResponse{Objects: cards})
	}
}

// HandleBot is HandleCards for bot connectors.
func HandleBot(connectorName string, fn BotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.AddLogField(r.Context(), "connector", connectorName)

		rc, err := NewRequestContext(r, ObjectTypeBot)
		if err != nil {
			WriteError(w, r, "bot", err)
			return
		}

		objects, err := fn(r.Context(), rc, r)
		if err != nil {
			WriteError(w, r, "bot", err)
			return
		}

		telemetry.ObserveObjects(connectorName, ObjectTypeBot, len(objects))
		WriteJSON(w, http.StatusOK, BotResponse{Objects: objects})
	}
}

// HandleAction wires an action endpoint. Success is an empty 200.
func HandleAction(connectorName, action string, fn ActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.AddLogField(r.Context(), "connector", connectorName)
		server.AddLogField(r.Context(), "action", action)

		rc, err := NewRequestContext(r, ObjectTypeCard)
		if err != nil {
			WriteError(w, r, action, err)
			return
		}

		err = fn(r.Context(), rc, r)
		telemetry.ObserveAction(connectorName, action, err)
		if err != nil {
			WriteError(w, r, action, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleBotDiscovery answers POST /bot/discovery with the commands of a bot
// connector. It needs no backend headers.
func HandleBotDiscovery(commands func(rc *RequestContext) []BotObject) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := RoutingContext(r, ObjectTypeBot)
		WriteJSON(w, http.StatusOK, BotDiscovery{
			Objects: []BotDiscoveryGroup{{Children: commands(rc)}},
		})
	}
}
