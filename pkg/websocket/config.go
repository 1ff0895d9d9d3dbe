package websocket

import "time"

// ServerConfig 服务端配置
type ServerConfig struct {
	ReadBufferSize   int           `mapstructure:"read_buffer_size" json:"read_buffer_size"`
	WriteBufferSize  int           `mapstructure:"write_buffer_size" json:"write_buffer_size"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" json:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" json:"write_timeout"`

	// PingInterval 为 0 时不发送 ping
	PingInterval time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	// PongTimeout 收到 pong 后延长的读超时
	PongTimeout time.Duration `mapstructure:"pong_timeout" json:"pong_timeout"`

	// SendQueueSize 每个连接的发送队列长度，满了以后丢弃
	SendQueueSize  int   `mapstructure:"send_queue_size" json:"send_queue_size"`
	MaxConnections int   `mapstructure:"max_connections" json:"max_connections"`
	MaxMessageSize int64 `mapstructure:"max_message_size" json:"max_message_size"`

	// AllowedOrigins 为空时只接受不带 Origin 的请求
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
}

// DefaultServerConfig 默认服务端配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
		SendQueueSize:    64,
		MaxConnections:   1024,
		MaxMessageSize:   4096,
	}
}

// Validate 验证配置
func (c *ServerConfig) Validate() error {
	if c.SendQueueSize <= 0 || c.MaxConnections <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ClientConfig 客户端配置
type ClientConfig struct {
	URL     string            `mapstructure:"url" json:"url"`
	Headers map[string]string `mapstructure:"headers" json:"headers"`

	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	// ReadTimeout 为 0 时不设置读超时
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`

	// 重连退避区间
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval" json:"reconnect_interval"`
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval" json:"max_reconnect_interval"`
}

// DefaultClientConfig 默认客户端配置
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		DialTimeout:          5 * time.Second,
		ReadTimeout:          90 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
	}
}

// Validate 验证配置
func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidURL
	}
	if c.ReconnectInterval <= 0 || c.MaxReconnectInterval < c.ReconnectInterval {
		return ErrInvalidConfig
	}
	return nil
}
