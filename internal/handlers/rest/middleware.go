package rest

import (
	"time"

	"github.com/gabapcia/meshgate/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader carries the request correlation id, generated when the
// caller does not supply one.
const requestIDHeader = "X-Request-Id"

// requestIDMiddleware ensures every request carries a correlation id and
// echoes it back on the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDHeader, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// loggingMiddleware logs one line per request after it completes.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "http request handled",
			"http.method", c.Request.Method,
			"http.path", c.Request.URL.Path,
			"http.status", c.Writer.Status(),
			"http.duration", time.Since(start).String(),
			"http.request_id", c.GetString(requestIDHeader),
		)
	}
}
