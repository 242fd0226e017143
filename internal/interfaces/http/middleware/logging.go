package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pmaschool/authcore/internal/shared/logger"
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

// CustomLogger logs one line per request. Session ids are never logged, only
// whether one was presented.
func CustomLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"body_size", c.Writer.Size(),
			"has_session", hasSession(c),
		}

		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			args = append(args, "request_id", requestID)
		}

		if method, exists := c.Get(ContextKeyRPCMethod); exists {
			args = append(args, "rpc_method", method)
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Errorw("HTTP request completed with server error", args...)
		case status >= 400:
			log.Warnw("HTTP request completed with client error", args...)
		default:
			log.Debugw("HTTP request completed successfully", args...)
		}
	}
}

// ContextKeyRPCMethod is set by the call_kw handler to "model.method".
const ContextKeyRPCMethod = "rpc_method"

func hasSession(c *gin.Context) bool {
	if c.GetHeader(rpc.HeaderSessionID) != "" {
		return true
	}
	ck, err := c.Cookie(rpc.CookieSessionID)
	return err == nil && ck != ""
}
