package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

// JWTConfig 观察者令牌配置
type JWTConfig struct {
	// 签名密钥，HMAC 对称算法
	SecretKey string `mapstructure:"secret_key" json:"-"`

	// 签名算法：HS256, HS384, HS512
	Algorithm string `mapstructure:"algorithm" json:"algorithm" validate:"omitempty,oneof=HS256 HS384 HS512"`

	// 签发令牌的有效期
	ExpiresIn time.Duration `mapstructure:"expires_in" json:"expires_in"`

	// 签发者，非空时校验 iss
	Issuer string `mapstructure:"issuer" json:"issuer"`

	// Token 前缀
	TokenPrefix string `mapstructure:"token_prefix" json:"token_prefix"`

	// 允许的时钟偏差
	Leeway time.Duration `mapstructure:"leeway" json:"leeway"`
}

// DefaultJWTConfig 默认配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Algorithm:   "HS256",
		ExpiresIn:   time.Hour,
		TokenPrefix: "Bearer ",
		Leeway:      5 * time.Second,
	}
}

// Claims 观察者令牌载荷
type Claims struct {
	jwt.RegisteredClaims

	// 允许观察的 zone，空表示全部
	Zones []string `json:"zones,omitempty"`
}

// CanObserve 是否允许观察该 zone
func (c *Claims) CanObserve(zone string) bool {
	return len(c.Zones) == 0 || slices.Contains(c.Zones, zone)
}

// JWTManager JWT 管理器
type JWTManager struct {
	config *JWTConfig
	method jwt.SigningMethod
	parser *jwt.Parser
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	newCfg, err := config.MergeConfig(DefaultJWTConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if newCfg.SecretKey == "" {
		return nil, ErrSecretKeyEmpty
	}

	method := jwt.GetSigningMethod(strings.ToUpper(newCfg.Algorithm))
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmInvalid, newCfg.Algorithm)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithLeeway(newCfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if newCfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(newCfg.Issuer))
	}

	return &JWTManager{
		config: newCfg,
		method: method,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issue 为观察者签发令牌
func (m *JWTManager) Issue(subject string, zones ...string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ExpiresIn)),
		},
		Zones: zones,
	}
	return jwt.NewWithClaims(m.method, claims).SignedString([]byte(m.config.SecretKey))
}

// ValidateToken 验证 Token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, m.config.TokenPrefix))
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := m.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, wrapError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Authorize 验证 Token 并检查 zone 权限
func (m *JWTManager) Authorize(tokenString, zone string) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.CanObserve(zone) {
		return nil, fmt.Errorf("%w: %s", ErrZoneForbidden, zone)
	}
	return claims, nil
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotValidYet
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

type contextKey string

// ClaimsContextKey 用于在 context 中存储 Claims
const ClaimsContextKey contextKey = "jwt_claims"

// SetClaimsToContext 将 Claims 存入 context
func SetClaimsToContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// GetClaimsFromContext 从 context 获取 Claims
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}
