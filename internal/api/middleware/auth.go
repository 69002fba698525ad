package middleware

import (
	"context"
	"net/http"
	"strings"

	"meal2list/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserIDHeader carries the caller identity
const UserIDHeader = "X-User-ID"

// UserProvisioner provisions a user row on first sight
type UserProvisioner interface {
	EnsureUser(ctx context.Context, userID string) error
}

// Identity resolves the caller from the identity header and stores it
// in the request context as "user_id". Requests without an identity
// are rejected.
func Identity(users UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.ErrorResponse{
				Code:    common.ErrCodeUnauthorized,
				Message: "missing " + UserIDHeader + " header",
			})
			return
		}

		if users != nil {
			if err := users.EnsureUser(c.Request.Context(), userID); err != nil {
				common.LogError("failed to provision user",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, common.ErrorResponse{
					Code:    common.ErrCodeServerError,
					Message: "internal server error",
				})
				return
			}
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
