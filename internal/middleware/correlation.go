package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agusmdev/burntop/internal/api"
)

// CorrelationHeader is the response header every request is echoed on.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID attaches a correlation ID to the request context and to the
// response header, reusing an inbound X-Correlation-ID when present so
// clients can thread their own ID through.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := api.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
