package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/davidbz/uniai/internal/config"
)

// exposedHeaders lets browser clients read the ids set by Trace.
//
//nolint:gochecknoglobals // read-only
var exposedHeaders = []string{"X-Trace-Id", "X-Request-Id"}

// CORS answers preflight requests for the gateway routes with rs/cors. A nil
// config disables it.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   append(append([]string(nil), cfg.AllowedHeaders...), "X-Trace-Id"),
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return c.Handler
}
