package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tjfontaine/polyglot-connectors/internal/server"
)

// maxBodyBytes bounds request bodies from the hub.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the error envelope returned to the hub.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// WriteError classifies err and writes the envelope. method names the
// operation that failed.
//
//   - MissingConfigError: 400, message is the header complaint
//   - BackendError with a rejected credential: 400, X-Backend-Status 401
//   - other BackendError: 500, X-Backend-Status is the backend's status
//   - RequestError: 400
//   - anything else: 500
func WriteError(w http.ResponseWriter, r *http.Request, method string, err error) {
	server.AddError(r.Context(), err)

	var cfgErr *MissingConfigError
	if errors.As(err, &cfgErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Message: cfgErr.Error()})
		return
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Message: method, Error: reqErr.Error()})
		return
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		w.Header().Set(HeaderBackendStatus, strconv.Itoa(backendErr.BackendStatus()))
		WriteJSON(w, backendErr.HTTPStatusCode(), ErrorBody{Message: method, Error: backendErr.Error()})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorBody{Message: method, Error: err.Error()})
}

// RequestError is a malformed or invalid body from the hub.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// CardRequest is the body the hub posts to card and bot endpoints. Tokens
// hold values extracted with the discovery TokenFields.
type CardRequest struct {
	Tokens map[string][]string `json:"tokens"`
}

// Token returns the values of a token, de-duplicated in order of appearance.
func (c CardRequest) Token(name string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range c.Tokens[name] {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

// DecodeCardRequest reads an optional CardRequest body. An empty body is a
// request without tokens.
func DecodeCardRequest(r *http.Request) (CardRequest, error) {
	var req CardRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, &RequestError{Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return req, nil
}

// DecodeAction decodes a JSON action body into v and validates it using its
// `validate` struct tags. Action bodies arrive either as JSON or as form
// values; form keys map onto json tag names.
func DecodeAction(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return &RequestError{Err: fmt.Errorf("failed to read request body: %w", err)}
		}
		if err := decodeForm(raw, v); err != nil {
			return &RequestError{Err: err}
		}
	} else if err := json.NewDecoder(body).Decode(v); err != nil {
		return &RequestError{Err: fmt.Errorf("invalid request body: %w", err)}
	}

	if err := validate.Struct(v); err != nil {
		return &RequestError{Err: describeValidation(err)}
	}
	return nil
}

func decodeForm(raw []byte, v any) error {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return fmt.Errorf("invalid form body: %w", err)
	}
	flat := make(map[string]string, len(values))
	for k := range values {
		flat[k] = values.Get(k)
	}
	// Round-trip through JSON so the json tags of v apply.
	b, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid form body: %w", err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
