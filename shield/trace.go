package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/overlay/idgen"
	"github.com/hazyhaar/overlay/kit"
)

var newRequestID = idgen.Prefixed("req_", idgen.NanoID(12))

// RequestID tags each request with an id, available through kit.GetRequestID,
// echoed in X-Request-ID and attached to a per-request logger.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newRequestID()
			ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), "http")
			w.Header().Set("X-Request-ID", id)

			l := logger.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx = context.WithValue(ctx, LoggerKey, l)
			l.Debug("request", "remote_addr", r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
