package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-connectors/internal/server"
	"github.com/tjfontaine/polyglot-connectors/internal/telemetry"
)

const userAgent = "hub-connector/1.0"

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) BackendOption {
	return func(b *Backend) {
		if httpClient != nil {
			b.httpClient = httpClient
		}
	}
}

// WithAuthHeader changes the header carrying the forwarded credential.
func WithAuthHeader(name string) BackendOption {
	return func(b *Backend) {
		if name != "" {
			b.authHeader = name
		}
	}
}

// WithAuthClassifier replaces DefaultAuthClassifier.
func WithAuthClassifier(c AuthClassifier) BackendOption {
	return func(b *Backend) {
		if c != nil {
			b.classify = c
		}
	}
}

// WithHeader adds a static header to every call, e.g. a tenant code.
func WithHeader(name, value string) BackendOption {
	return func(b *Backend) {
		if value != "" {
			b.static.Set(name, value)
		}
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Backend issues calls against the vendor API named by a RequestContext.
// It holds no per-request state and is shared by all requests.
type Backend struct {
	connector  string
	httpClient *http.Client
	authHeader string
	classify   AuthClassifier
	static     http.Header
	logger     *slog.Logger
}

func NewBackend(connector string, opts ...BackendOption) *Backend {
	b := &Backend{
		connector:  connector,
		httpClient: http.DefaultClient,
		authHeader: "Authorization",
		classify:   DefaultAuthClassifier,
		static:     http.Header{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call describes one outbound request. Path is relative to the backend base
// URL unless it is absolute.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Get is a GET call decoding the JSON answer into out.
func (b *Backend) Get(ctx context.Context, rc *RequestContext, path string, query url.Values, out any) error {
	return b.Do(ctx, rc, Call{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Send is a call with a JSON body. out may be nil.
func (b *Backend) Send(ctx context.Context, rc *RequestContext, method, path string, body, out any) error {
	return b.Do(ctx, rc, Call{Method: method, Path: path, Body: body}, out)
}

// Do performs call with the forwarded credential. Non-2xx responses become
// *BackendError; nothing is retried.
func (b *Backend) Do(ctx context.Context, rc *RequestContext, call Call, out any) error {
	target, err := b.resolve(rc, call)
	if err != nil {
		return err
	}

	var reader io.Reader
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	b.setHeaders(req, rc, call)

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveBackendCall(b.connector, call.Method, 0, time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	telemetry.ObserveBackendCall(b.connector, call.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	server.RecordRateLimits(ctx, resp.Header)
	b.logger.DebugContext(ctx, "backend call",
		slog.String("connector", b.connector),
		slog.String("request_id", rc.RequestID),
		slog.String("method", call.Method),
		slog.String("path", call.Path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		berr := &BackendError{
			Method:     call.Method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Auth:       b.classify(resp.StatusCode, respBody),
		}
		server.AddLogField(ctx, "backend_status", fmt.Sprint(berr.BackendStatus()))
		return berr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (b *Backend) resolve(rc *RequestContext, call Call) (string, error) {
	target := call.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = rc.BaseURL + "/" + strings.TrimPrefix(call.Path, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", target, err)
	}
	if len(call.Query) > 0 {
		q := u.Query()
		for k, vs := range call.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (b *Backend) setHeaders(req *http.Request, rc *RequestContext, call Call) {
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range b.static {
		req.Header[k] = vs
	}
	for k, vs := range call.Header {
		req.Header[k] = vs
	}
	req.Header.Set(b.authHeader, rc.Credential)
}
