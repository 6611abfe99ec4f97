// internal/common/errors/handler.go
package errors

import (
	"github.com/gin-gonic/gin"
)

// ErrorHandler converts request errors into JSON responses with standardized logging.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Body is the JSON shape of every error response.
type Body struct {
	Error string `json:"error"`
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleRequestError logs err and aborts the request with its mapped status.
func (h *ErrorHandler) HandleRequestError(c *gin.Context, err error) {
	stdErr := Normalize(err)
	h.logError(c, stdErr)
	c.AbortWithStatusJSON(stdErr.HTTPStatus(), Body{Error: stdErr.Message})
}

func (h *ErrorHandler) logError(c *gin.Context, stdErr *StandardError) {
	fields := map[string]interface{}{
		"path":          c.Request.URL.Path,
		"method":        c.Request.Method,
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"status":        stdErr.HTTPStatus(),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	if requestID, ok := c.Get("requestId"); ok {
		fields["requestId"] = requestID
	}

	if IsClientError(stdErr.Code) {
		h.logger.Warn("Request rejected", fields)
		return
	}
	h.logger.Error("Request failed", fields)
}
