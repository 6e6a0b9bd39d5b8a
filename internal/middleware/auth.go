package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mediashare/internal/models"
	"mediashare/internal/security"
)

const (
	currentUserKey  = "current_user"
	accessClaimsKey = "access_claims"
)

// Auth requires a bearer token. A missing token is 401; a token that fails
// verification is 403. The identity is taken from the verified claims.
func Auth(tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr := ""
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(accessClaimsKey, *claims)
		c.Set(currentUserKey, models.User{
			ID:       claims.UserID,
			Username: claims.Username,
			Email:    claims.Email,
			Role:     models.UserRole(claims.Role),
		})

		c.Next()
	}
}

// CurrentUser returns the identity stored by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
