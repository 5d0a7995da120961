package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/service"
	"github.com/orgstack/org-management-service/pkg/response"
)

// Context keys for the authenticated admin
const (
	ContextKeyAdminID          = "admin_id"
	ContextKeyOrganizationName = "organization_name"
	ContextKeyClaims           = "token_claims"
)

// RequireAuth validates the bearer token on every request and injects the
// claims into the gin context. Tenant-level authorization happens in the
// handlers, where the target organization is known.
func RequireAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.ErrCodeUnauthorized, "Authorization header is required"))
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.ErrCodeInvalidToken, "Invalid authorization header format"))
			return
		}
		tokenString := authHeader[len(bearerPrefix):]

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.ErrCodeInvalidToken, "Token is empty"))
			return
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.ErrCodeTokenExpired, "Access token has expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(response.ErrCodeInvalidToken, "Invalid access token"))
			return
		}

		c.Set(ContextKeyAdminID, claims.AdminID)
		c.Set(ContextKeyOrganizationName, claims.TenantName)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// GetClaims extracts the validated token claims from gin context
func GetClaims(c *gin.Context) (*domain.TokenClaims, bool) {
	v, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*domain.TokenClaims)
	return claims, ok
}

// GetAdminID extracts the admin ID from gin context
func GetAdminID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyAdminID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetOrganizationName extracts the token's organization name from gin context
func GetOrganizationName(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyOrganizationName)
	if !exists {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}
