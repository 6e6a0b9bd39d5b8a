package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediashare/internal/models"
)

// RequireRoles rejects callers whose role is not listed. It must run after Auth.
func RequireRoles(message string, roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		if _, ok := roleSet[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
			return
		}

		c.Next()
	}
}
