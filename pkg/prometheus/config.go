package prometheus

// Config Prometheus 配置
type Config struct {
	// 命名空间（应用名称）
	Namespace string `json:"namespace" mapstructure:"namespace" validate:"required"`

	// 子系统（可选）
	Subsystem string `json:"subsystem" mapstructure:"subsystem"`

	// 是否注册 Go 运行时采集器
	EnableGoCollector bool `json:"enable_go_collector" mapstructure:"enable_go_collector"`

	// 是否注册进程采集器
	EnableProcessCollector bool `json:"enable_process_collector" mapstructure:"enable_process_collector"`

	// 常量标签，附加到本客户端创建的全部指标
	ConstLabels map[string]string `json:"const_labels" mapstructure:"const_labels"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Namespace:              "app",
		EnableGoCollector:      true,
		EnableProcessCollector: true,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil || c.Namespace == "" {
		return ErrInvalidConfig
	}
	return nil
}
