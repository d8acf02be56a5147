package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agusmdev/burntop/internal/api"
	"github.com/agusmdev/burntop/internal/handlers"
)

// BearerAuth extracts a user id carried directly as a bearer token.
// Session issuance, OAuth handshakes, and token signing are a
// collaborator concern (spec.md Non-goals exclude auth/session lifetime
// policy); this middleware only satisfies the §7 UNAUTHORIZED contract
// for requests missing or carrying an unparseable credential, leaving
// the collaborator free to swap in real token verification later.
func BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			api.WriteErrorFromError(w, r, api.NewUnauthorizedError("missing bearer credential"))
			return
		}

		userID, err := uuid.Parse(token)
		if err != nil {
			api.WriteErrorFromError(w, r, api.NewUnauthorizedError("invalid bearer credential"))
			return
		}

		next.ServeHTTP(w, handlers.WithUserID(r, userID))
	})
}
