package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackendServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *RequestContext) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &RequestContext{BaseURL: srv.URL, Credential: "Bearer forwarded"}
}

func TestBackend_ForwardsCredential(t *testing.T) {
	var gotAuth, gotTenant, gotQuery string
	srv, rc := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("aw-tenant-code")
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	})

	b := NewBackend("test", WithHTTPClient(srv.Client()), WithHeader("aw-tenant-code", "T1"))

	var out struct {
		Name string `json:"name"`
	}
	err := b.Get(context.Background(), rc, "/things?a=1", url.Values{"b": {"2"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer forwarded", gotAuth)
	assert.Equal(t, "T1", gotTenant)
	assert.Equal(t, "a=1&b=2", gotQuery)
	assert.Equal(t, "ok", out.Name)
}

func TestBackend_CustomAuthHeader(t *testing.T) {
	var got string
	srv, rc := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Key")
	})

	b := NewBackend("test", WithHTTPClient(srv.Client()), WithAuthHeader("X-Api-Key"))
	require.NoError(t, b.Get(context.Background(), rc, "/", nil, nil))
	assert.Equal(t, "Bearer forwarded", got)
}

func TestBackend_SendsJSONBody(t *testing.T) {
	var body map[string]string
	var contentType string
	srv, rc := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	b := NewBackend("test", WithHTTPClient(srv.Client()))
	err := b.Send(context.Background(), rc, http.MethodPatch, "/records/1", map[string]string{"state": "approved"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "approved", body["state"])
}

func TestBackend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		classifier AuthClassifier
		wantAuth   bool
		wantHTTP   int
		wantHeader int
	}{
		{name: "401", status: 401, body: `{"error":"expired"}`, wantAuth: true, wantHTTP: 400, wantHeader: 401},
		{name: "403 is opaque", status: 403, body: `{"error":"forbidden"}`, wantHTTP: 500, wantHeader: 403},
		{name: "404", status: 404, body: `not found`, wantHTTP: 500, wantHeader: 404},
		{name: "429", status: 429, body: `slow down`, wantHTTP: 500, wantHeader: 429},
		{name: "503", status: 503, body: ``, wantHTTP: 500, wantHeader: 503},
		{
			name:       "marker in 403 body",
			status:     403,
			body:       `[{"errorCode":"Bad_OAuth_Token"}]`,
			classifier: BodyMarkers([]int{400, 403}, "Bad_OAuth_Token"),
			wantAuth:   true,
			wantHTTP:   400,
			wantHeader: 401,
		},
		{
			name:       "marker on wrong status",
			status:     500,
			body:       `Bad_OAuth_Token`,
			classifier: BodyMarkers([]int{400, 403}, "Bad_OAuth_Token"),
			wantHTTP:   500,
			wantHeader: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rc := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			b := NewBackend("test", WithHTTPClient(srv.Client()), WithAuthClassifier(tt.classifier))
			err := b.Get(context.Background(), rc, "/things", nil, nil)
			require.Error(t, err)

			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.StatusCode)
			assert.Equal(t, tt.body, string(be.Body))
			assert.Equal(t, tt.wantAuth, IsBackendAuth(err))
			assert.Equal(t, tt.wantHTTP, be.HTTPStatusCode())
			assert.Equal(t, tt.wantHeader, be.BackendStatus())
		})
	}
}

func TestBackend_AbsolutePath(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path == "/next-page"
	}))
	t.Cleanup(srv.Close)

	rc := &RequestContext{BaseURL: "https://unused.example", Credential: "x"}
	b := NewBackend("test", WithHTTPClient(srv.Client()))

	require.NoError(t, b.Get(context.Background(), rc, srv.URL+"/next-page", nil, nil))
	assert.True(t, hit)
}

func TestBackend_InvalidJSON(t *testing.T) {
	srv, rc := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	b := NewBackend("test", WithHTTPClient(srv.Client()))
	var out map[string]any
	err := b.Get(context.Background(), rc, "/", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal response")

	var be *BackendError
	assert.False(t, errors.As(err, &be))
}
