package connector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MissingConfigError reports a required forwarded header that was absent.
type MissingConfigError struct {
	Header string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("The %s is required", strings.ToLower(e.Header))
}

// BackendError is a non-2xx answer from the vendor API.
type BackendError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte

	// Auth is set when the backend rejected the forwarded credential. The
	// hub can fix that by re-authenticating the user.
	Auth bool
}

func (e *BackendError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if e.Auth {
		return fmt.Sprintf("backend rejected credential (status %d): %s", e.StatusCode, body)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, body)
}

// BackendStatus is the value reported in X-Backend-Status.
func (e *BackendError) BackendStatus() int {
	if e.Auth {
		return http.StatusUnauthorized
	}
	return e.StatusCode
}

// HTTPStatusCode is the status the connector answers the hub with.
func (e *BackendError) HTTPStatusCode() int {
	if e.Auth {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// AuthClassifier decides whether a failed backend response means the
// credential was rejected.
type AuthClassifier func(status int, body []byte) bool

// DefaultAuthClassifier treats only 401 as a credential failure.
func DefaultAuthClassifier(status int, _ []byte) bool {
	return status == http.StatusUnauthorized
}

// BodyMarkers extends DefaultAuthClassifier: responses with one of the given
// statuses whose body contains any marker are credential failures too. Used
// for vendors that report expired tokens as 400/403.
func BodyMarkers(statuses []int, markers ...string) AuthClassifier {
	return func(status int, body []byte) bool {
		if DefaultAuthClassifier(status, body) {
			return true
		}
		matched := false
		for _, s := range statuses {
			if s == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
		text := string(body)
		for _, m := range markers {
			if strings.Contains(text, m) {
				return true
			}
		}
		return false
	}
}

// IsBackendAuth reports whether err carries a rejected backend credential.
func IsBackendAuth(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Auth
}
