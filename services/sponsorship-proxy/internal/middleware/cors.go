package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/quangdang46/talent-passport/shared/logging"
)

// CORS allows the wallet front end to call the proxy from the browser
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", logging.CorrelationHeader, logging.RequestIDHeader},
		ExposedHeaders: []string{logging.CorrelationHeader, logging.RequestIDHeader},
		MaxAge:         600,
	})
	return c.Handler(next)
}
