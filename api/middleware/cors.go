package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// The storefront is served from its own origin; local dev runs on 3000.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://teranga-eats.sn",
	"https://www.teranga-eats.sn",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
