package server

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "funnel-coach/internal/common/errors"
	"funnel-coach/internal/common/logger"
)

//go:embed web/templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "web/templates/*.html"))
}

type errorPage struct {
	Status     int
	StatusText string
	Message    string
	RequestID  string
}

// wantsJSON decides the error representation. API paths and JSON requests
// always get JSON; otherwise the Accept header must prefer it over HTML.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/analyze") {
		return true
	}
	if strings.Contains(c.GetHeader("Content-Type"), "json") {
		return true
	}
	if c.GetHeader("Accept") == "" {
		return false
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// renderError writes err as JSON or as the HTML error page.
func renderError(c *gin.Context, errs *apperrors.ErrorHandler, err error) {
	if wantsJSON(c) {
		errs.HandleRequestError(c, err)
		return
	}

	stdErr := apperrors.Normalize(err)
	status := stdErr.HTTPStatus()
	page := errorPage{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    stdErr.Message,
		RequestID:  c.GetString(ContextKeyID),
	}
	c.HTML(status, "error.html", page)
	c.Abort()
}

func notFound(errs *apperrors.ErrorHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, errs, apperrors.NewNotFoundError(c.Request.URL.Path))
	}
}

func methodNotAllowed(errs *apperrors.ErrorHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, errs, apperrors.NewMethodNotAllowedError(c.Request.Method, c.Request.URL.Path))
	}
}

// recovery turns a panic into a 500 in the negotiated format.
func recovery(errs *apperrors.ErrorHandler, log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context(), log).Error("Panic recovered", map[string]interface{}{
			"panic": recovered,
			"path":  c.Request.URL.Path,
		})
		renderError(c, errs, apperrors.NewInternalError(nil))
	})
}
