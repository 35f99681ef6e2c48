package connector

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
)

func TestNewRequestContext_MissingHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantMsg string
	}{
		{
			name:    "nothing forwarded",
			headers: map[string]string{},
			wantMsg: "The x-connector-base-url is required",
		},
		{
			name:    "credential without base url",
			headers: map[string]string{HeaderAuthorization: "Bearer abc"},
			wantMsg: "The x-connector-base-url is required",
		},
		{
			name:    "base url without credential",
			headers: map[string]string{HeaderBaseURL: "https://backend.example"},
			wantMsg: "The x-connector-authorization is required",
		},
		{
			name:    "blank base url",
			headers: map[string]string{HeaderBaseURL: "  ", HeaderAuthorization: "Bearer abc"},
			wantMsg: "The x-connector-base-url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/cards/requests", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			_, err := NewRequestContext(req, ObjectTypeCard)
			require.Error(t, err)

			var cfgErr *MissingConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantMsg, cfgErr.Error())
		})
	}
}

func TestNewRequestContext(t *testing.T) {
	req := httptest.NewRequest("POST", "/cards/requests", nil)
	req.Header.Set(HeaderBaseURL, "https://backend.example/")
	req.Header.Set(HeaderAuthorization, "Bearer abc")
	req.Header.Set(HeaderRoutingPrefix, "https://hub.example/connectors/123/card/")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		Username: "jdoe",
		Email:    "jdoe@acme.example",
	}))

	rc, err := NewRequestContext(req, ObjectTypeCard)
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example", rc.BaseURL)
	assert.Equal(t, "Bearer abc", rc.Credential)
	assert.Equal(t, "jdoe@acme.example", rc.UserKey())
	assert.Equal(t, "https://hub.example/connectors/123/card/api/v1/approve", rc.ActionURL("/api/v1/approve"))
}

func TestNewRequestContext_RoutingTemplate(t *testing.T) {
	req := httptest.NewRequest("POST", "/bot/cases", nil)
	req.Header.Set(HeaderBaseURL, "https://backend.example")
	req.Header.Set(HeaderAuthorization, "Bearer abc")
	req.Header.Set(HeaderRoutingTemplate, "https://hub.example/connectors/9/INSERT_OBJECT_TYPE/")

	rc, err := NewRequestContext(req, "bot")
	require.NoError(t, err)

	assert.Equal(t, "https://hub.example/connectors/9/bot/", rc.RoutingPrefix)
}

func TestRequestContext_ActionURLWithoutPrefix(t *testing.T) {
	rc := &RequestContext{}
	assert.Equal(t, "/api/v1/approve", rc.ActionURL("/api/v1/approve"))
}

func TestRequestContext_UserKeyFallsBackToUsername(t *testing.T) {
	rc := &RequestContext{Identity: auth.Identity{Username: "jdoe"}}
	assert.Equal(t, "jdoe", rc.UserKey())
}
