package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS builds the cross-origin policy for the HTTP surface. Restricted to the
// configured frontend origin when one is set.
func CORS(frontendOrigin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Device-Secret"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if frontendOrigin != "" {
		cfg.AllowOrigins = []string{frontendOrigin}
	} else {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
