package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ekskul-api/internal/authz"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
	"github.com/noah-isme/ekskul-api/pkg/response"
)

// RequireCapability admits the request only when the caller's role grants the capability.
// It must run after JWT.
func RequireCapability(capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !authz.Allowed(claims.Role, claims.RoleStatus, capability) {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "Access denied"))
			return
		}
		c.Next()
	}
}
