package redis

import "time"

// Config Redis 配置（Standalone/Cluster 两种模式，必须且只能配置一种）
type Config struct {
	// Standalone 单机模式配置
	Standalone *NodeConfig `mapstructure:"standalone" json:"standalone,omitempty"`

	// Cluster 集群模式配置
	Cluster *ClusterConfig `mapstructure:"cluster" json:"cluster,omitempty"`

	// Pool 连接池配置（所有模式共享）
	Pool PoolConfig `mapstructure:"pool" json:"pool"`
}

// NodeConfig 单节点配置
type NodeConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Password string `mapstructure:"password" json:"-"`
	// DB 数据库索引（0-15）
	DB int `mapstructure:"db" json:"db"`
}

// ClusterConfig 集群配置
type ClusterConfig struct {
	// Addrs 集群节点地址列表 (格式: "host:port")
	Addrs    []string `mapstructure:"addrs" json:"addrs"`
	Password string   `mapstructure:"password" json:"-"`
}

// PoolConfig 连接池配置
type PoolConfig struct {
	// MaxIdleConns 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns" json:"max_idle_conns"`

	// MaxOpenConns 最大打开连接数
	MaxOpenConns int `mapstructure:"max_open_conns" json:"max_open_conns"`

	// ConnMaxIdleTime 连接最大空闲时间
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`

	// DialTimeout 连接超时时间
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`

	// ReadTimeout 读超时时间
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`

	// WriteTimeout 写超时时间
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
}

// DefaultConfig 默认单机配置
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxIdleConns: 4,
			MaxOpenConns: 16,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	modeCount := 0
	if c.Standalone != nil {
		modeCount++
	}
	if c.Cluster != nil {
		modeCount++
		if len(c.Cluster.Addrs) == 0 {
			return ErrInvalidConfig
		}
	}

	if modeCount != 1 {
		return ErrInvalidConfig
	}
	return nil
}

// IsCluster 是否为集群模式
func (c *Config) IsCluster() bool {
	return c.Cluster != nil
}
