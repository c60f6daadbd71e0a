// Package requestid tags every request with a correlation ID so log lines
// from one request can be stitched together.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header carries the correlation ID on requests and responses.
	Header = "X-Request-ID"

	contextKey = "request_id"
)

// Middleware reuses an incoming X-Request-ID when the caller supplies one,
// otherwise mints a fresh UUID. The ID is echoed on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value extracts the correlation ID for the current request, or "".
func Value(c *gin.Context) string {
	id, _ := c.Value(contextKey).(string)
	return id
}
