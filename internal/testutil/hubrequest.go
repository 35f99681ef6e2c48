package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// Test credential forwarded to backends.
const BackendCredential = "Bearer backend-token"

// HubRequest builds a request as the hub sends it to a connector: JSON body
// plus the forwarded backend base URL and credential.
func HubRequest(method, target, baseURL, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Connector-Base-Url", baseURL)
	req.Header.Set("X-Connector-Authorization", BackendCredential)
	req.Header.Set("X-Routing-Prefix", "https://hub.example/connectors/test/card/")
	return req
}
