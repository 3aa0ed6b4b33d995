package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// Response is the error envelope.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// Result is the success envelope shared by all agent routes.
type Result struct {
	Result any `json:"result"`
}

// Success writes a 200 response wrapping data in {"result": ...}.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Result{Result: data})
}

// HandleError writes an error response derived from the AppError code.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := apperrors.ExtractCode(err)
	httpStatus := apperrors.GetHTTPStatus(code)
	message := apperrors.FormatError(code, apperrors.GetDetails(err))

	log := logger.FromContext(c.Request.Context())
	fields := []zap.Field{
		zap.Int("code", code),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if apperrors.IsClientError(code) {
		log.Warn("request rejected", fields...)
	} else {
		log.Error("request failed", fields...)
	}

	_ = c.Error(err)
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    struct{}{},
	})
}

// ErrorWithCode writes an error response for a bare code.
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	httpStatus := apperrors.GetHTTPStatus(code)
	message := apperrors.FormatError(code, details...)

	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    struct{}{},
	})
}
