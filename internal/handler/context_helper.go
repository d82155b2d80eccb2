package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/middleware"
	"github.com/uh2c-dev/memoire-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext converts the authenticated claims into the shape the
// authorization rules evaluate. Returns the zero Actor when unauthenticated.
func actorFromContext(c *gin.Context) (gate.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return gate.Actor{}, false
	}
	return gate.Actor{
		ID:         claims.UserID,
		Role:       claims.Role,
		Department: claims.Department,
	}, true
}
