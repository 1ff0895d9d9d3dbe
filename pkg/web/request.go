package web

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	weberrors "github.com/lk2023060901/xdooria-combat/pkg/web/errors"
)

// BindAndValidate 绑定请求参数并进行校验，失败时已写入响应
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			Error(c, weberrors.CodeInvalidParams, errs.Error())
			return false
		}
		Error(c, weberrors.CodeInvalidParams, "invalid request parameters: "+err.Error())
		return false
	}
	return true
}

// ParamUint 解析无符号路径参数，失败时已写入响应
func ParamUint(c *gin.Context, key string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil {
		Error(c, weberrors.CodeInvalidParams, "invalid "+key)
		return 0, false
	}
	return v, true
}
