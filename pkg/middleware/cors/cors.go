// Package cors implements the minimal cross-origin policy the frontend
// needs: echo trusted origins, answer preflights, nothing configurable
// beyond the origin list.
package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	allowedHeaders = "Authorization, Content-Type, X-Request-ID"
	preflightAge   = "300"
)

// New builds the CORS middleware. An empty origin list allows any origin,
// which is only sensible in development.
func New(origins []string) gin.HandlerFunc {
	trusted := make(map[string]bool, len(origins))
	for _, o := range origins {
		trusted[normalize(o)] = true
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if origin := c.GetHeader("Origin"); origin != "" {
			switch {
			case len(trusted) == 0:
				h.Set("Access-Control-Allow-Origin", "*")
			case trusted[normalize(origin)]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Max-Age", preflightAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
