package connector

import (
	"net"
	"net/http"
	"strings"
)

// Object type names in the discovery document.
const (
	ObjectTypeCard         = "card"
	ObjectTypeBot          = "bot"
	ObjectTypeBotDiscovery = "botDiscovery"
)

// Discovery is the document served on GET /.
type Discovery struct {
	Image       Link                  `json:"image"`
	ObjectTypes map[string]ObjectType `json:"object_types"`
	Actions     map[string]Link       `json:"actions,omitempty"`
}

type ObjectType struct {
	Pollable bool                  `json:"pollable,omitempty"`
	Doc      *Link                 `json:"doc,omitempty"`
	Fields   map[string]TokenField `json:"fields,omitempty"`
	Endpoint Link                  `json:"endpoint"`
}

// TokenField tells the hub which tokens to extract from the user's context
// (e.g. email senders) and send along with card requests.
type TokenField struct {
	CaptureGroup int    `json:"capture_group"`
	Regex        string `json:"regex"`
}

// Descriptor is the connector-relative discovery description. Paths are
// relative to the connector base URL.
type Descriptor struct {
	ObjectType   string
	EndpointPath string
	DocURL       string
	Pollable     bool
	Fields       map[string]TokenField
	ActionPaths  map[string]string
}

// Document resolves d against baseURL.
func (d Descriptor) Document(baseURL, imageURL string) Discovery {
	ot := ObjectType{
		Pollable: d.Pollable,
		Fields:   d.Fields,
		Endpoint: Link{Href: baseURL + d.EndpointPath},
	}
	if d.DocURL != "" {
		ot.Doc = &Link{Href: d.DocURL}
	}

	doc := Discovery{
		Image:       Link{Href: imageURL},
		ObjectTypes: map[string]ObjectType{d.ObjectType: ot},
	}
	if len(d.ActionPaths) > 0 {
		doc.Actions = make(map[string]Link, len(d.ActionPaths))
		for name, path := range d.ActionPaths {
			doc.Actions[name] = Link{Href: baseURL + path}
		}
	}
	return doc
}

// BaseURL derives the connector's externally visible URL from the
// X-Forwarded-* headers set by the hub's proxy, falling back to the Host
// header.
func BaseURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	port := r.Header.Get("X-Forwarded-Port")
	prefix := strings.TrimSuffix(r.Header.Get("X-Forwarded-Prefix"), "/")

	switch {
	case host != "" && port != "":
		// X-Forwarded-Port wins over a port already on X-Forwarded-Host.
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return proto + "://" + net.JoinHostPort(strings.Trim(host, "[]"), port) + prefix
	case host != "":
		return proto + "://" + host + prefix
	default:
		return proto + "://" + r.Host + prefix
	}
}
