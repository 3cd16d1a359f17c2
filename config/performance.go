package config

import (
	"time"

	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PerformanceLogger logs every request with its latency and flags the ones
// slower than slow.
func PerformanceLogger(logger *logrus.Logger, slow time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    latency.String(),
			"request_id": c.GetString(utils.RequestIDKey),
		})

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Server error")
		case c.Writer.Status() >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request completed")
		}

		if slow > 0 && latency > slow {
			entry.Warn("Slow request")
		}
	}
}
