package auth

import (
	"crypto/subtle"
	"dm-chat/domain"
	"dm-chat/errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"
	RolesKey  = "roles"

	InternalKeyHeader = "X-Internal-Key"
)

// Authenticate validates the JWT and injects the identity into the gin context.
// The token comes from "Authorization: Bearer <token>", or from the "token"
// query parameter for WebSocket upgrades, which browsers can't add headers to.
func Authenticate(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "authorization token is missing")
			return
		}
		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(UserIDKey, domain.UserID(claims.UserID))
		c.Set(RolesKey, claims.Roles)
		c.Next()
	}
}

// RequireInternalKey guards routes reserved to trusted services.
func RequireInternalKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(InternalKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			abort(c, http.StatusForbidden, errors.ErrForbidden.Error())
			return
		}
		c.Next()
	}
}

// UserIDFrom returns the identity set by Authenticate.
func UserIDFrom(c *gin.Context) (domain.UserID, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(domain.UserID)
	return id, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
