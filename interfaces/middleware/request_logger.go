package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

// RequestLogger logs one line per request. The SSE stream is logged when it closes.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		entry := logger.GetLogger().WithFields(map[string]interface{}{
			"method":  ctx.Request.Method,
			"path":    ctx.FullPath(),
			"status":  ctx.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  ctx.ClientIP(),
		})
		if len(ctx.Errors) > 0 {
			entry.WithField("error", ctx.Errors.String()).Error("Request failed")
			return
		}
		if ctx.Writer.Status() >= 500 {
			entry.Warn("Request completed with server error")
			return
		}
		entry.Debug("Request completed")
	}
}
