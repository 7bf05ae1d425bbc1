package middleware

import "github.com/gin-gonic/gin"

// CacheHeader is the response header reporting catalog cache usage.
const CacheHeader = "X-Cache"

// SetCacheHit marks the response as served from or past the catalog cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if hit {
		c.Header(CacheHeader, "HIT")
		return
	}
	c.Header(CacheHeader, "MISS")
}
