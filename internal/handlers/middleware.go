package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the Casdoor-issued bearer token and stores the
// caller's identity in the Gin context under "user_id" and "user_role".
func AuthMiddleware(client *casdoorsdk.Client, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
			})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := client.ParseJwtToken(token)
		if err != nil {
			logger.Warn("Token validation failed", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.User.Id)
		c.Set("user_name", claims.User.Name)
		c.Set("user_role", roleFromClaims(claims))
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Role not established",
			})
			return
		}

		role, ok := value.(models.UserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Role not established",
			})
			return
		}

		for _, allowed := range roles {
			if role == allowed || role == models.RoleAdmin {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Insufficient permissions",
		})
	}
}

// roleFromClaims maps the Casdoor user tag onto a service role. Unknown or
// missing tags default to student, the least privileged role.
func roleFromClaims(claims *casdoorsdk.Claims) models.UserRole {
	if claims.User.IsAdmin {
		return models.RoleAdmin
	}
	switch models.UserRole(claims.User.Tag) {
	case models.RoleTeacher:
		return models.RoleTeacher
	case models.RoleAdmin:
		return models.RoleAdmin
	}
	return models.RoleStudent
}
