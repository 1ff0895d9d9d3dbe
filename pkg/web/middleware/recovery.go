package middleware

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Recovery 适配 pkg/logger 的异常恢复中间件
func Recovery(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			if err, ok := r.(error); ok && brokenPipe(err) {
				l.Error("http broken pipe", "error", err, "request", string(httpRequest))
				_ = c.Error(err)
				c.Abort()
				return
			}

			l.Error("http recovery from panic", "error", r, "request", string(httpRequest))
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

func brokenPipe(err error) bool {
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
