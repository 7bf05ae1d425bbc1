package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation id on requests and responses.
const Header = "X-Request-ID"

const (
	ginKey    = "request_id"
	maxLength = 128
)

// Middleware tags each request with an id. An inbound X-Request-ID is kept
// when it is short printable ASCII; anything else is replaced with a UUID so
// it cannot inject into log lines or audit rows.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the id assigned to the request, or "" outside the middleware.
func Value(c *gin.Context) string {
	return c.GetString(ginKey)
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
