package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/pkg/jwt"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// JWTAuth JWT authentication middleware
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.V2ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header", nil)
			c.Abort()
			return
		}

		// 2. Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.V2ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format", nil)
			c.Abort()
			return
		}

		// 3. Verify token
		claims, err := jwtManager.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.V2ErrorResponse(c, http.StatusUnauthorized, "Token expired", err)
			} else {
				common.V2ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
			}
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			common.V2ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
			c.Abort()
			return
		}

		// 4. Store user info in context
		c.Set(ctxUserID, userID)
		c.Set(ctxRole, claims.Role)

		c.Next()
	}
}

// GetUserID extracts user ID from context. Zero means anonymous.
func GetUserID(c *gin.Context) uint64 {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0
	}
	if id, ok := userID.(uint64); ok {
		return id
	}
	return 0
}

// GetUserRole extracts the user role from context
func GetUserRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}
