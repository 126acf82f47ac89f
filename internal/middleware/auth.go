package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cuterank/internal/security"
)

const identityKey = "identity"

// Authenticate verifies the bearer identity token and stores its claims on
// the context.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := security.ParseIdentityToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(identityKey, *claims)
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (security.IdentityClaims, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return security.IdentityClaims{}, false
	}
	claims, ok := v.(security.IdentityClaims)
	return claims, ok
}
