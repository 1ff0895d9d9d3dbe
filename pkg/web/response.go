package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-combat/pkg/web/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 提示信息
	Data    any    `json:"data"`    // 数据载体
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Error 错误响应，HTTP 状态码由业务码推导
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(errors.CodeToStatus(code), Response{
		Code:    code,
		Message: message,
	})
}
