package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation ID across services.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware tags every request with a correlation ID. An inbound
// X-Request-ID is propagated as-is; otherwise a fresh UUID is issued. The ID
// is echoed on the response so clients can quote it in bug reports.
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

// Value returns the correlation ID assigned to this request, empty when the
// middleware did not run.
func Value(c *gin.Context) string {
	v, _ := c.Get(contextKey)
	id, _ := v.(string)
	return id
}
