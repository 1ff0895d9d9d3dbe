package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-combat/pkg/security"
	weberrors "github.com/lk2023060901/xdooria-combat/pkg/web/errors"
)

// ClaimsKey Context 中存储 Claims 的 key
const ClaimsKey = "jwt_claims"

// Auth JWT 认证中间件，令牌取自 Authorization 头或 token 查询参数
func Auth(m *security.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			code := weberrors.CodeUnAuthorized
			if errors.Is(err, security.ErrTokenMissing) {
				c.Header("WWW-Authenticate", "Bearer")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    code,
				"message": err.Error(),
				"data":    nil,
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(security.SetClaimsToContext(c.Request.Context(), claims))
		c.Next()
	}
}

// GetClaims 获取认证后的 Claims
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}
