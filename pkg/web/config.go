package web

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Config Web 服务配置
type Config struct {
	Addr            string        `mapstructure:"addr" json:"addr"`
	Mode            string        `mapstructure:"mode" json:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// 允许跨域的来源，空表示关闭
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// 按 IP 限流，RequestsPerSecond 为 0 时关闭
	RateLimit RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" json:"burst" validate:"gte=0"`
	MaxClients        int           `mapstructure:"max_clients" json:"max_clients"`
	ClientTTL         time.Duration `mapstructure:"client_ttl" json:"client_ttl"`
	SkipPaths         []string      `mapstructure:"skip_paths" json:"skip_paths"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:      20,
			MaxClients: 10000,
			ClientTTL:  10 * time.Minute,
			SkipPaths:  []string{"/healthz", "/metrics"},
		},
	}
}
