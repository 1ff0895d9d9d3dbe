package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Config Sentry 配置
type Config struct {
	// 是否启用，关闭时所有上报为空操作
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	DSN         string `json:"dsn" mapstructure:"dsn"`                 // Sentry DSN
	Environment string `json:"environment" mapstructure:"environment"` // 环境 (dev/test/prod)
	Release     string `json:"release" mapstructure:"release"`         // 版本号
	ServerName  string `json:"server_name" mapstructure:"server_name"` // 服务器名称

	SampleRate       float64 `json:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"` // 错误采样率
	AttachStacktrace bool    `json:"attach_stacktrace" mapstructure:"attach_stacktrace"`
	MaxBreadcrumbs   int     `json:"max_breadcrumbs" mapstructure:"max_breadcrumbs" validate:"gte=0"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	Debug bool `json:"debug" mapstructure:"debug"`

	// 全局标签
	Tags map[string]string `json:"tags" mapstructure:"tags"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment:      "production",
		SampleRate:       1.0,
		AttachStacktrace: true,
		MaxBreadcrumbs:   100,
		ShutdownTimeout:  2 * time.Second,
		Tags:             make(map[string]string),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if c.SampleRate < 0 || c.SampleRate > 1 || c.MaxBreadcrumbs < 0 {
		return ErrInvalidConfig
	}
	return nil
}

func (c *Config) toClientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		SampleRate:       c.SampleRate,
		AttachStacktrace: c.AttachStacktrace,
		MaxBreadcrumbs:   c.MaxBreadcrumbs,
		Debug:            c.Debug,
	}
}
