package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
)

// HubAuthMiddleware verifies the hub's bearer token and stores the caller
// identity in the request context. Failures are answered with 401 before any
// connector code runs.
func HubAuthMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r)
			if err != nil {
				writeUnauthorized(w, err)
				AddError(r.Context(), err)
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				AddError(r.Context(), err)
				if errors.Is(err, auth.ErrInvalidToken) {
					writeUnauthorized(w, auth.ErrInvalidToken)
					return
				}
				// Key retrieval failed; the token itself may be fine.
				writeUnauthorized(w, errors.New("unable to verify hub token"))
				return
			}

			AddLogField(r.Context(), "principal", id.Username)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}
