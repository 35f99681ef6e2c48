package salesforce

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
	"github.com/tjfontaine/polyglot-connectors/internal/connector"
	"github.com/tjfontaine/polyglot-connectors/internal/pkg/config"
	"github.com/tjfontaine/polyglot-connectors/internal/testutil"
)

func newRouter(t *testing.T, client *http.Client) (chi.Router, *Connector) {
	t.Helper()

	c, err := New(connector.Deps{Config: &config.Config{}, HTTPClient: client})
	require.NoError(t, err)

	sf := c.(*Connector)
	sf.now = func() time.Time { return time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	c.Routes(r)
	return r, sf
}

func asUser(req *http.Request) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		Username: "jdoe",
		Email:    "jdoe@acme.example",
	}))
}

func serve(r chi.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCards(t *testing.T) {
	var mu sync.Mutex
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/data/v44.0/query", r.URL.Path)
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()

		switch {
		case strings.Contains(q, "FROM Contact") && strings.Contains(q, "ann@customer.example"):
			_, _ = io.WriteString(w, `{"totalSize":1,"done":true,"records":[{
				"Id":"003A","Name":"Ann Lee","Email":"ann@customer.example","Phone":"555-0100",
				"Title":null,"AccountId":"001A","Account":{"Name":"Customer Inc"},
				"CreatedDate":"2023-11-02T08:00:00.000+0000"}]}`)
		case strings.Contains(q, "FROM Contact"):
			_, _ = io.WriteString(w, `{"totalSize":0,"done":true,"records":[]}`)
		case strings.Contains(q, "FROM Opportunity"):
			_, _ = io.WriteString(w, `{"totalSize":1,"done":true,"records":[{
				"Id":"006A","Name":"Renewal 2024","StageName":"Negotiation","CloseDate":"2024-06-30","Amount":25000}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	router, _ := newRouter(t, srv.Client())
	body := `{"tokens":{"email":["ann@customer.example","nobody@else.example"]}}`
	resp := serve(router, asUser(testutil.HubRequest("POST", "/cards/requests", srv.URL, body)))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out connector.CardsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Objects, 1)

	card := out.Objects[0]
	assert.Equal(t, "Salesforce contact - Ann Lee", card.Header.Title)
	assert.Equal(t, []string{"Customer Inc"}, card.Header.Subtitle)
	assert.Equal(t, notAvailable, card.Body.Fields[1].Description)
	assert.Equal(t, "Renewal 2024 (Negotiation) - 25000.00, closes 2024-06-30", card.Body.Fields[4].Content[0].Text)
	assert.Equal(t, "https://hub.example/connectors/test/card/api/v1/contacts/003A/log-activity", card.Actions[0].URL.Href)
	assert.Equal(t, srv.URL+"/003A", card.Actions[1].URL.Href)

	require.Len(t, queries, 3)
	for _, q := range queries {
		if strings.Contains(q, "FROM Contact") {
			assert.Contains(t, q, "Owner.Email = 'jdoe@acme.example'")
		}
	}
}

func TestCards_NoTokens(t *testing.T) {
	router, _ := newRouter(t, http.DefaultClient)
	resp := serve(router, asUser(testutil.HubRequest("POST", "/cards/requests", "https://unused.example", `{"tokens":{}}`)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"objects":[]}`, resp.Body.String())
}

func TestCards_SessionErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantBackend string
	}{
		{
			name:        "401",
			status:      401,
			body:        `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`,
			wantStatus:  400,
			wantBackend: "401",
		},
		{
			name:        "403 bad oauth token",
			status:      403,
			body:        `[{"message":"Bad_OAuth_Token","errorCode":"FORBIDDEN"}]`,
			wantStatus:  400,
			wantBackend: "401",
		},
		{
			name:        "400 missing token",
			status:      400,
			body:        `{"error":"missing_oauth_token"}`,
			wantStatus:  400,
			wantBackend: "401",
		},
		{
			name:        "400 malformed query",
			status:      400,
			body:        `[{"message":"unexpected token","errorCode":"MALFORMED_QUERY"}]`,
			wantStatus:  500,
			wantBackend: "400",
		},
		{
			name:        "403 request limit",
			status:      403,
			body:        `[{"errorCode":"REQUEST_LIMIT_EXCEEDED"}]`,
			wantStatus:  500,
			wantBackend: "403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			router, _ := newRouter(t, srv.Client())
			body := `{"tokens":{"email":["ann@customer.example"]}}`
			resp := serve(router, asUser(testutil.HubRequest("POST", "/cards/requests", srv.URL, body)))

			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantBackend, resp.Header().Get(connector.HeaderBackendStatus))
		})
	}
}

func TestLogActivity(t *testing.T) {
	var got task
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"00T1","success":true,"errors":[]}`)
	}))
	t.Cleanup(srv.Close)

	router, _ := newRouter(t, srv.Client())
	body := `{"subject":"Email with Ann Lee","comment":"Discussed renewal"}`
	resp := serve(router, asUser(testutil.HubRequest("POST", "/api/v1/contacts/003A/log-activity", srv.URL, body)))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "/services/data/v44.0/sobjects/Task", gotPath)
	assert.Equal(t, task{
		WhoID:        "003A",
		Subject:      "Email with Ann Lee",
		Description:  "Discussed renewal",
		Status:       "Completed",
		ActivityDate: "2024-05-02",
	}, got)
}

func TestLogActivity_RequiresSubject(t *testing.T) {
	router, _ := newRouter(t, http.DefaultClient)
	resp := serve(router, asUser(testutil.HubRequest("POST", "/api/v1/contacts/003A/log-activity", "https://unused.example", `{"comment":"x"}`)))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, resp.Header().Get(connector.HeaderBackendStatus))
}

func TestEscapeSOQL(t *testing.T) {
	assert.Equal(t, `o\'brien@example.com`, escapeSOQL(`o'brien@example.com`))
	assert.Equal(t, `a\\b`, escapeSOQL(`a\b`))
}

func TestDescriptor_SenderEmail(t *testing.T) {
	c, err := New(connector.Deps{Config: &config.Config{}})
	require.NoError(t, err)

	field := c.Descriptor().Fields["email"]
	pattern := regexp.MustCompile(field.Regex)

	for _, tc := range []struct {
		line string
		want string
	}{
		{line: "From: John Doe <john.doe@acme.com>", want: "john.doe@acme.com"},
		{line: "from: john.doe@acme.com", want: "john.doe@acme.com"},
		{line: `FROM: "Doe, Jane" <Jane.Doe+crm@sub.acme.co.uk>`, want: "Jane.Doe+crm@sub.acme.co.uk"},
		{line: "From: <a_b@x.io>", want: "a_b@x.io"},
		{line: "To: john.doe@acme.com", want: ""},
	} {
		var got string
		if m := pattern.FindStringSubmatch(tc.line); m != nil {
			got = m[field.CaptureGroup]
		}
		assert.Equal(t, tc.want, got, tc.line)
	}
}
