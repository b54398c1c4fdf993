package middleware

import (
	"log/slog"
	"net/http"

	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation and trace fields in
// the request context. Mount it after RequestLogging and Tracing; Auth adds
// the actor fields once the session is known.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
