package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates an incoming X-Request-Id or generates one. The id is
// echoed on the response and a logger carrying it is stored in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := setRequestID(r.Context(), id)
		ctx = logging.WithLogger(ctx, slog.Default().With("request_id", id))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
