package connector

import (
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
	"github.com/tjfontaine/polyglot-connectors/internal/server"
)

// Headers forwarded by the hub.
const (
	HeaderBaseURL         = "X-Connector-Base-Url"
	HeaderAuthorization   = "X-Connector-Authorization"
	HeaderRoutingPrefix   = "X-Routing-Prefix"
	HeaderRoutingTemplate = "X-Routing-Template"
	HeaderBackendStatus   = "X-Backend-Status"
)

// routingTemplatePlaceholder is replaced by the object type in X-Routing-Template.
const routingTemplatePlaceholder = "INSERT_OBJECT_TYPE"

// RequestContext is everything a connector needs from the inbound request to
// talk to its backend. It is built once per request and never modified.
type RequestContext struct {
	BaseURL       string
	Credential    string
	RoutingPrefix string
	RequestID     string
	Identity      auth.Identity
}

// NewRequestContext validates the forwarded headers of r. The base URL is
// checked before the credential; neither check performs I/O.
func NewRequestContext(r *http.Request, objectType string) (*RequestContext, error) {
	baseURL := strings.TrimSpace(r.Header.Get(HeaderBaseURL))
	if baseURL == "" {
		return nil, &MissingConfigError{Header: HeaderBaseURL}
	}

	credential := r.Header.Get(HeaderAuthorization)
	if credential == "" {
		return nil, &MissingConfigError{Header: HeaderAuthorization}
	}

	rc := RoutingContext(r, objectType)
	rc.BaseURL = strings.TrimSuffix(baseURL, "/")
	rc.Credential = credential
	return rc, nil
}

// RoutingContext is the part of the request context that needs no backend:
// routing prefix, request id and caller identity.
func RoutingContext(r *http.Request, objectType string) *RequestContext {
	prefix := r.Header.Get(HeaderRoutingPrefix)
	if prefix == "" {
		if tmpl := r.Header.Get(HeaderRoutingTemplate); tmpl != "" {
			prefix = strings.ReplaceAll(tmpl, routingTemplatePlaceholder, objectType)
		}
	}

	rc := &RequestContext{
		RoutingPrefix: prefix,
		RequestID:     server.GetRequestID(r.Context()),
	}
	if id := auth.IdentityFrom(r.Context()); id != nil {
		rc.Identity = *id
	}
	return rc
}

// ActionURL places path under the routing prefix. Without a prefix the path
// is returned relative.
func (rc *RequestContext) ActionURL(path string) string {
	if rc.RoutingPrefix == "" {
		return path
	}
	return strings.TrimSuffix(rc.RoutingPrefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

// UserKey is the caller identity used in backend ids: the email when the hub
// supplied one, the username otherwise.
func (rc *RequestContext) UserKey() string {
	if rc.Identity.Email != "" {
		return rc.Identity.Email
	}
	return rc.Identity.Username
}
