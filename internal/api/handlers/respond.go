package handlers

import (
	"errors"
	"net/http"

	"meal2list/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WriteError renders an error through the shared taxonomy. Untyped
// errors become opaque 500s so internals never leak to clients.
func WriteError(c *gin.Context, err error) {
	status := common.StatusOf(err)
	resp := common.ErrorResponse{
		Code:    common.CodeOf(err),
		Message: clientMessage(err),
	}

	if status >= http.StatusInternalServerError {
		common.LogError("request failed with server error",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", resp.Code),
			zap.Error(err),
		)
	}

	if c.GetBool("debug") && err != nil {
		resp.Details = err.Error()
	}

	c.AbortWithStatusJSON(status, resp)
}

func clientMessage(err error) string {
	if ce, ok := common.AsCustomError(err); ok {
		return ce.Message
	}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return "internal server error"
}

// UserID returns the authenticated caller identity
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}
