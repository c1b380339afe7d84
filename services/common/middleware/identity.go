package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// The API gateway authenticates callers and forwards identity as headers.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"

	UserContextKey = "userID"
	RoleContextKey = "userRole"
)

var ErrNoUser = errors.New("user ID not found in context")

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, c.GetHeader(UserRoleHeader))
		c.Next()
	}
}

// RequireRole must run after RequireUser.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Forbidden"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, error) {
	if id := c.GetString(UserContextKey); id != "" {
		return id, nil
	}
	return "", ErrNoUser
}
