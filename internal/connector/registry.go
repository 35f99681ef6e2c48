// Package connector holds the request pipeline shared by every connector:
// forwarded-header extraction, the backend gateway, card and bot object
// construction, error classification and the connector factory registry.
//
// # Adding a New Connector
//
// Implement Connector in its own package under internal/connectors and
// expose an explicit registration function that calls RegisterFactory.
// Wire that function from internal/registration (or tests) so registration
// is explicit instead of relying on init() side effects.
//
//	func Register() {
//	    if connector.IsRegistered(Type) {
//	        return
//	    }
//	    connector.RegisterFactory(connector.Factory{
//	        Type:        Type,
//	        Description: "Example approvals",
//	        Create:      New,
//	    })
//	}
package connector

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/pkg/config"
)

// Connector is one vendor adapter.
type Connector interface {
	// Name is the connector type, e.g. "servicenow".
	Name() string

	// Descriptor describes the discovery document.
	Descriptor() Descriptor

	// Routes registers the hub-authenticated endpoints.
	Routes(r chi.Router)
}

// Deps are the shared collaborators handed to connector factories.
type Deps struct {
	Config     *config.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Backend builds a gateway for a connector using the shared client and
// configured credential header.
func (d Deps) Backend(name string, opts ...BackendOption) *Backend {
	base := []BackendOption{WithHTTPClient(d.HTTPClient), WithLogger(d.Logger)}
	if d.Config != nil {
		base = append(base, WithAuthHeader(d.Config.Connector.AuthHeader))
	}
	return NewBackend(name, append(base, opts...)...)
}

// Factory creates a connector from configuration.
type Factory struct {
	Type        string
	Description string
	Create      func(deps Deps) (Connector, error)

	// ValidateConfig checks connector specific settings before Create.
	// Optional.
	ValidateConfig func(cfg *config.Config) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a connector factory.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("connector factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("connector factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("connector factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
}

// GetFactory returns the factory for a connector type, if registered.
func GetFactory(connectorType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[connectorType]
	return f, ok
}

// ListTypes returns all registered connector types, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsRegistered returns true if a connector type is registered.
func IsRegistered(connectorType string) bool {
	_, ok := GetFactory(connectorType)
	return ok
}

// Create builds the connector of the given type.
func Create(connectorType string, deps Deps) (Connector, error) {
	f, ok := GetFactory(connectorType)
	if !ok {
		return nil, fmt.Errorf("unknown connector type: %q (registered types: %v)", connectorType, ListTypes())
	}
	if f.ValidateConfig != nil && deps.Config != nil {
		if err := f.ValidateConfig(deps.Config); err != nil {
			return nil, fmt.Errorf("invalid %s configuration: %w", connectorType, err)
		}
	}
	return f.Create(deps)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]Factory)
}
