package kafka

import "time"

// Config Kafka 生产者配置
type Config struct {
	// Brokers Kafka broker 地址列表
	Brokers []string `json:"brokers" mapstructure:"brokers"`

	// Topic 主题
	Topic string `json:"topic" mapstructure:"topic"`

	// Async 异步发送，错误只记录日志
	Async bool `json:"async" mapstructure:"async"`

	// BatchSize 批量大小
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`

	// BatchTimeout 批量最长等待时间
	BatchTimeout time.Duration `json:"batch_timeout" mapstructure:"batch_timeout"`

	// MaxRetries 最大重试次数
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// RequiredAcks 确认模式: 0 不等待, 1 Leader, -1 全部副本
	RequiredAcks int `json:"required_acks" mapstructure:"required_acks" validate:"oneof=-1 0 1"`

	// Compression 压缩算法: none, gzip, snappy, lz4, zstd
	Compression string `json:"compression" mapstructure:"compression" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`

	// WriteTimeout 写超时
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`

	// SASL 认证配置（可选）
	SASL *SASLConfig `json:"sasl,omitempty" mapstructure:"sasl"`

	// TLS 配置（可选）
	TLS *TLSConfig `json:"tls,omitempty" mapstructure:"tls"`
}

// SASLConfig SASL 认证配置
type SASLConfig struct {
	// Mechanism 认证机制: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `json:"mechanism" mapstructure:"mechanism"`
	Username  string `json:"username" mapstructure:"username"`
	Password  string `json:"-" mapstructure:"password"`
}

// TLSConfig TLS 配置
type TLSConfig struct {
	Enable             bool   `json:"enable" mapstructure:"enable"`
	CertFile           string `json:"cert_file" mapstructure:"cert_file"`
	KeyFile            string `json:"key_file" mapstructure:"key_file"`
	CAFile             string `json:"ca_file" mapstructure:"ca_file"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		Async:        false,
		BatchSize:    100,
		BatchTimeout: 200 * time.Millisecond,
		MaxRetries:   3,
		RequiredAcks: 1,
		Compression:  "snappy",
		WriteTimeout: 10 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Topic == "" {
		return ErrEmptyTopic
	}
	return nil
}
