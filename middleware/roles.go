package middleware

import (
	"net/http"

	"claims-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

// Roles carried in access tokens
const (
	RoleUploader = "uploader"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// RequireRole allows the request only when the token carries one of allowedRoles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || claims.Role == "" {
			utils.RespondWithUnauthorized(c, "User role not found")
			c.Abort()
			return
		}

		for _, allowed := range allowedRoles {
			if claims.Role == allowed {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, http.StatusForbidden, "forbidden", "Insufficient permissions", gin.H{
			"required_roles": allowedRoles,
			"user_role":      claims.Role,
		})
		c.Abort()
	}
}

// AdminGuard restricts a route to administrators
func AdminGuard() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}
