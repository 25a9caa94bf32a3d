package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/queueme/scheduling-core/pkg/logger"
)

// LoggingConfig holds request-logging middleware configuration.
type LoggingConfig struct {
	SkipPaths []string
}

// DefaultLoggingConfig skips the noisy health-check paths.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths: []string{"/health", "/health/live", "/health/ready"},
	}
}

// RequestID assigns a request ID (reusing an inbound X-Request-ID if the
// caller already set one) and stores it on the gin context for downstream
// handlers and the logging middleware to pick up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLogging returns a middleware that logs two structured lines per
// request, one at start and one at completion.
func RequestLogging(log *logger.Logger, config LoggingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, skip := range config.SkipPaths {
			if c.Request.URL.Path == skip {
				c.Next()
				return
			}
		}

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		clientIP := c.ClientIP()

		var requestID string
		if id, exists := c.Get("request_id"); exists {
			requestID = id.(string)
		}

		requestLogger := log.With(
			"request_id", requestID,
			"method", method,
			"path", path,
			"client_ip", clientIP,
		)
		requestLogger.Info("request started")

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		responseLogger := requestLogger.With(
			"status_code", statusCode,
			"duration_ms", duration.Milliseconds(),
		)

		switch {
		case statusCode >= 500:
			responseLogger.Error("request completed with server error")
		case statusCode >= 400:
			responseLogger.Warn("request completed with client error")
		default:
			responseLogger.Info("request completed")
		}
	}
}

// DefaultRequestLogging returns a request-logging middleware with the
// default configuration.
func DefaultRequestLogging(log *logger.Logger) gin.HandlerFunc {
	return RequestLogging(log, DefaultLoggingConfig())
}

// ErrorLogging logs any gin.Error accumulated on the context during the
// handler chain, for handlers that record errors via c.Error instead of
// writing a response directly.
func ErrorLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		errorLogger := log.With("path", c.Request.URL.Path, "method", c.Request.Method)
		if requestID, exists := c.Get("request_id"); exists {
			errorLogger = errorLogger.With("request_id", requestID)
		}
		for _, err := range c.Errors {
			errorLogger.Error("request error", "error", err.Error())
		}
	}
}
