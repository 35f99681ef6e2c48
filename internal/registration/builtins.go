package registration

import (
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/adobesign"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/airwatch"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/dynamics"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/linkedin"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/salesforce"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/servicenow"
	"github.com/tjfontaine/polyglot-connectors/internal/connectors/zoom"
)

// RegisterBuiltins registers the built-in connectors explicitly.
// This replaces init-based side effects and is intended to be called from
// cmd/connector and tests before a connector is created.
func RegisterBuiltins() {
	RegisterCardBuiltins()
	RegisterBotBuiltins()
}

// RegisterCardBuiltins registers the card connectors only.
func RegisterCardBuiltins() {
	servicenow.Register()
	salesforce.Register()
	adobesign.Register()
	zoom.Register()
	airwatch.Register()
}

// RegisterBotBuiltins registers the bot connectors only.
func RegisterBotBuiltins() {
	dynamics.Register()
	linkedin.Register()
}
