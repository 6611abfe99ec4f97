package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"funnel-coach/internal/common/logger"
	"funnel-coach/internal/common/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"
	ContextKeyID    = "requestId"
	maxRequestIDLen = 128
)

// RequestIDMiddleware tags every request with an ID and stores a logger
// carrying it in the request context.
func RequestIDMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(ContextKeyID, id)
		c.Header(HeaderRequestID, id)

		reqLog := log.With(map[string]interface{}{ContextKeyID: id})
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))
		c.Next()
	}
}

// LoggerMiddleware returns a Gin middleware for request logging
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		fields := map[string]interface{}{
			"latency":    time.Since(start).String(),
			"clientIp":   c.ClientIP(),
			"method":     c.Request.Method,
			"statusCode": status,
			"bodySize":   c.Writer.Size(),
			"path":       path,
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields["error"] = errs
		}

		reqLog := logger.FromContext(c.Request.Context(), log)
		switch {
		case status >= 500:
			reqLog.Error("request completed", fields)
		case status >= 400:
			reqLog.Warn("request completed", fields)
		default:
			reqLog.Info("request completed", fields)
		}
	}
}

// MetricsMiddleware counts requests per matched route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
