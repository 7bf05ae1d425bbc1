package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/models"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
	"github.com/noah-isme/ekskul-api/pkg/response"
)

// requireClaims returns the caller's claims or writes 401.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
