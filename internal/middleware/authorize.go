package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin lets through only identities isAdmin accepts. The role claim
// is not trusted on its own.
func RequireAdmin(isAdmin func(userID int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !isAdmin(id.UserID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
