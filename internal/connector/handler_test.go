package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forwarded(req *http.Request) *http.Request {
	req.Header.Set(HeaderBaseURL, "https://backend.example")
	req.Header.Set(HeaderAuthorization, "Bearer abc")
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandleCards(t *testing.T) {
	var gotTokens []string
	h := HandleCards("test", func(ctx context.Context, rc *RequestContext, req CardRequest) ([]Card, error) {
		gotTokens = req.Token("email")
		return []Card{NewCard(CardSpec{Header: Header{Title: "one"}, Key: []string{"k"}})}, nil
	})

	body := `{"tokens":{"email":["a@x.example","A@x.example","b@x.example",""]}}`
	req := forwarded(httptest.NewRequest("POST", "/cards/requests", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a@x.example", "b@x.example"}, gotTokens)

	resp := decodeBody[CardsResponse](t, rec)
	require.Len(t, resp.Objects, 1)
	assert.Equal(t, "one", resp.Objects[0].Header.Title)
}

func TestHandleCards_EmptyIsArray(t *testing.T) {
	h := HandleCards("test", func(ctx context.Context, rc *RequestContext, req CardRequest) ([]Card, error) {
		return nil, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, forwarded(httptest.NewRequest("POST", "/cards/requests", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"objects":[]}`, rec.Body.String())
}

func TestHandleCards_Errors(t *testing.T) {
	tests := []struct {
		name        string
		headers     bool
		err         error
		wantStatus  int
		wantBackend string
		wantMessage string
		wantCalled  bool
	}{
		{
			name:        "missing headers",
			headers:     false,
			wantStatus:  400,
			wantMessage: "The x-connector-base-url is required",
		},
		{
			name:        "backend 401",
			headers:     true,
			err:         &BackendError{StatusCode: 401, Auth: true},
			wantStatus:  400,
			wantBackend: "401",
			wantMessage: "cards",
			wantCalled:  true,
		},
		{
			name:        "backend 404",
			headers:     true,
			err:         &BackendError{StatusCode: 404},
			wantStatus:  500,
			wantBackend: "404",
			wantMessage: "cards",
			wantCalled:  true,
		},
		{
			name:        "wrapped backend 502",
			headers:     true,
			err:         errors.Join(errors.New("fan-out"), &BackendError{StatusCode: 502}),
			wantStatus:  500,
			wantBackend: "502",
			wantMessage: "cards",
			wantCalled:  true,
		},
		{
			name:        "other failure",
			headers:     true,
			err:         errors.New("dial tcp: refused"),
			wantStatus:  500,
			wantMessage: "cards",
			wantCalled:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := HandleCards("test", func(ctx context.Context, rc *RequestContext, req CardRequest) ([]Card, error) {
				called = true
				return nil, tt.err
			})

			req := httptest.NewRequest("POST", "/cards/requests", nil)
			if tt.headers {
				forwarded(req)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBackend, rec.Header().Get(HeaderBackendStatus))
			assert.Equal(t, tt.wantCalled, called)

			body := decodeBody[ErrorBody](t, rec)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestHandleCards_MalformedBody(t *testing.T) {
	h := HandleCards("test", func(ctx context.Context, rc *RequestContext, req CardRequest) ([]Card, error) {
		t.Fatal("should not be called")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, forwarded(httptest.NewRequest("POST", "/cards/requests", strings.NewReader("{"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderBackendStatus))
}

type approveBody struct {
	RequestID string `json:"request_id" validate:"required"`
	Comment   string `json:"comment"`
}

func TestHandleAction(t *testing.T) {
	var got approveBody
	h := HandleAction("test", "approve", func(ctx context.Context, rc *RequestContext, r *http.Request) error {
		return DecodeAction(r, &got)
	})

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := forwarded(httptest.NewRequest("POST", "/api/v1/approve", strings.NewReader(`{"request_id":"r1"}`)))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "r1", got.RequestID)
	})

	t.Run("form", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := forwarded(httptest.NewRequest("POST", "/api/v1/approve", strings.NewReader("request_id=r2&comment=ok")))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "r2", got.RequestID)
		assert.Equal(t, "ok", got.Comment)
	})

	t.Run("validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := forwarded(httptest.NewRequest("POST", "/api/v1/approve", strings.NewReader(`{"comment":"x"}`)))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[ErrorBody](t, rec)
		assert.Equal(t, "approve", body.Message)
		assert.Contains(t, body.Error, "request_id failed on required")
	})
}

func TestHandleBot(t *testing.T) {
	h := HandleBot("test", func(ctx context.Context, rc *RequestContext, r *http.Request) ([]BotObject, error) {
		return []BotObject{NewBotMessage("hello", "")}, nil
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, forwarded(httptest.NewRequest("POST", "/bot/cases", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[BotResponse](t, rec)
	require.Len(t, resp.Objects, 1)
	assert.Equal(t, "hello", resp.Objects[0].ItemDetails.Title)
}

func TestHandleBotDiscovery(t *testing.T) {
	h := HandleBotDiscovery(func(rc *RequestContext) []BotObject {
		return []BotObject{NewBotCommand(rc, "My cases", "", "/bot/cases")}
	})

	req := httptest.NewRequest("POST", "/bot/discovery", nil)
	req.Header.Set(HeaderRoutingTemplate, "https://hub.example/c/INSERT_OBJECT_TYPE/")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[BotDiscovery](t, rec)
	require.Len(t, resp.Objects, 1)
	require.Len(t, resp.Objects[0].Children, 1)

	actions := resp.Objects[0].Children[0].ItemDetails.Actions
	require.Len(t, actions, 1)
	assert.Equal(t, "https://hub.example/c/bot/bot/cases", actions[0].URL.Href)
}

type stubConnector struct{ desc Descriptor }

func (s stubConnector) Name() string           { return "stub" }
func (s stubConnector) Descriptor() Descriptor { return s.desc }
func (s stubConnector) Routes(r chi.Router)    {}

func TestMountPublic_Discovery(t *testing.T) {
	c := stubConnector{desc: Descriptor{
		ObjectType:   ObjectTypeCard,
		EndpointPath: "/cards/requests",
		Pollable:     true,
		ActionPaths:  map[string]string{"approve": "/api/v1/approve"},
	}}
	r := chi.NewRouter()
	MountPublic(r, c, "")

	tests := []struct {
		name     string
		headers  map[string]string
		host     string
		wantBase string
	}{
		{
			name:     "host header only",
			host:     "connector.local:3000",
			wantBase: "http://connector.local:3000",
		},
		{
			name: "forwarded host and port",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "hub.example",
				"X-Forwarded-Port":  "8443",
			},
			wantBase: "https://hub.example:8443",
		},
		{
			name: "forwarded host already carrying the port",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "hub.example:8443",
				"X-Forwarded-Port":  "8443",
			},
			wantBase: "https://hub.example:8443",
		},
		{
			name: "forwarded ipv6 host and port",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "[::1]",
				"X-Forwarded-Port":  "8443",
			},
			wantBase: "https://[::1]:8443",
		},
		{
			name: "forwarded prefix",
			headers: map[string]string{
				"X-Forwarded-Proto":  "https",
				"X-Forwarded-Host":   "hub.example",
				"X-Forwarded-Prefix": "/connectors/sn/",
			},
			wantBase: "https://hub.example/connectors/sn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			doc := decodeBody[Discovery](t, rec)
			assert.Equal(t, tt.wantBase+"/cards/requests", doc.ObjectTypes["card"].Endpoint.Href)
			assert.Equal(t, tt.wantBase+"/images/connector.svg", doc.Image.Href)
			assert.Equal(t, tt.wantBase+"/api/v1/approve", doc.Actions["approve"].Href)
		})
	}
}

func TestMountPublic_HealthAndLogo(t *testing.T) {
	r := chi.NewRouter()
	MountPublic(r, stubConnector{}, "https://cdn.example/logo.png")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/images/connector.svg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	doc := decodeBody[Discovery](t, rec)
	assert.Equal(t, "https://cdn.example/logo.png", doc.Image.Href)
}

func TestRegistry(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	RegisterFactory(Factory{
		Type: "stub",
		Create: func(deps Deps) (Connector, error) {
			return stubConnector{}, nil
		},
	})

	assert.True(t, IsRegistered("stub"))
	assert.Equal(t, []string{"stub"}, ListTypes())

	c, err := Create("stub", Deps{})
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Name())

	_, err = Create("missing", Deps{})
	assert.ErrorContains(t, err, `unknown connector type: "missing"`)

	assert.Panics(t, func() {
		RegisterFactory(Factory{Type: "stub", Create: func(Deps) (Connector, error) { return nil, nil }})
	})
}
