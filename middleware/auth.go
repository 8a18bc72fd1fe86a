package middleware

import (
	"strings"

	"claims-intake-platform/internal/auth"
	"claims-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey = "claims"
	userIDKey = "user_id"
)

// AuthMiddleware identifies the caller from a bearer token or access_token cookie
type AuthMiddleware struct {
	tokens   *auth.Tokens
	required bool
}

// NewAuthMiddleware returns the middleware. With required=false requests
// without a token pass through anonymously; a presented token must be valid.
func NewAuthMiddleware(tokens *auth.Tokens, required bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, required: required}
}

func (a *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" || a.tokens == nil {
			if a.required {
				utils.RespondWithUnauthorized(c, "Authentication token is required")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		claims, err := a.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithUnauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// Logout revokes the token that authenticated the request
func (a *AuthMiddleware) Logout(c *gin.Context) {
	claims := GetClaims(c)
	if claims == nil {
		utils.RespondWithUnauthorized(c, "Authentication token is required")
		return
	}
	if err := a.tokens.Revoke(c.Request.Context(), claims); err != nil {
		utils.RespondWithInternalError(c, "Failed to revoke token", err.Error())
		return
	}
	c.Status(204)
}

// GetClaims returns the validated token claims, nil for anonymous requests
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetUserID returns the authenticated user id or ""
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// ExtractTokenFromHeader returns the token of a "Bearer <token>" header
func ExtractTokenFromHeader(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
