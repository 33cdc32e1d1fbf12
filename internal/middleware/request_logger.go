package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stayhub/stayhub-backend/pkg/logger"
)

// RequestLogger logs every request with structured fields once the
// response is written. Field names follow the service-layer register
// (user_id, conversation_key) so one grep covers both layers.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		event := logger.GetLogger().Info()
		switch {
		case status >= 500:
			event = logger.GetLogger().Error()
		case status >= 400:
			event = logger.GetLogger().Warn()
		}

		event = event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size())

		// Identify the caller and conversation without ever logging content
		if userID := GetUserID(c); userID != "" {
			event = event.Str("user_id", userID)
		}
		if key := c.Param("conversation_id"); key != "" {
			event = event.Str("conversation_key", key)
		}

		event.Msg("request")
	}
}
