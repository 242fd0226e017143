package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmaschool/authcore/internal/shared/logger"
	"github.com/pmaschool/authcore/internal/shared/utils"
)

const HeaderAdminToken = "X-Admin-Token"

type AdminTokenMiddleware struct {
	token  string
	logger logger.Interface
}

// NewAdminTokenMiddleware guards the administration routes. An empty token
// rejects every request.
func NewAdminTokenMiddleware(token string, logger logger.Interface) *AdminTokenMiddleware {
	return &AdminTokenMiddleware{token: token, logger: logger}
}

func (m *AdminTokenMiddleware) RequireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(HeaderAdminToken)
		if presented == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing admin token")
			c.Abort()
			return
		}

		if m.token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
			m.logger.Warnw("admin token rejected", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid admin token")
			c.Abort()
			return
		}

		c.Next()
	}
}
