package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DriverAuth enforces bearer JWT tokens carrying the driver role. Location
// reports go through it; reads stay open.
func DriverAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != RoleDriver {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "driver role required"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}
