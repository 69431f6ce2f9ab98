package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/middleware"
	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
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

// resolveScope turns the authenticated claims into an acting scope.
// Resolved once per request; every service call downstream receives the
// same snapshot.
func resolveScope(c *gin.Context, scopes service.ScopeResolver) (models.ActingScope, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.ActingScope{}, appErrors.ErrUnauthorized
	}
	return scopes.ScopeFor(c.Request.Context(), claims)
}
