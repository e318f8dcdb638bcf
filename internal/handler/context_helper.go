package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sports-academy-api/internal/middleware"
	"github.com/noah-isme/sports-academy-api/internal/models"
)

// claimsFromContext returns the caller set by middleware.JWT, or nil on
// routes mounted without it.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	if value, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := value.(*models.JWTClaims); ok {
			return claims
		}
	}
	return nil
}

// actorID is the user id recorded against admin writes. Empty for
// anonymous callers.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
