package prometheus

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

// Client Prometheus 客户端，持有独立的 Registry
type Client struct {
	config   *Config
	registry *prometheus.Registry

	mu    sync.Mutex
	names map[string]struct{}
}

// New 创建 Prometheus 客户端
func New(cfg *Config) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:   newCfg,
		registry: prometheus.NewRegistry(),
		names:    make(map[string]struct{}),
	}
	if newCfg.EnableGoCollector {
		c.registry.MustRegister(collectors.NewGoCollector())
	}
	if newCfg.EnableProcessCollector {
		c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c, nil
}

// Registry 获取底层 Registry
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 HTTP Handler，挂载到管理服务的 /metrics
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          c.registry,
	})
}

// Config 获取配置
func (c *Client) Config() *Config {
	return c.config
}

// Register 注册采集器，重复注册返回 ErrMetricExists
func (c *Client) Register(col prometheus.Collector) error {
	if err := c.registry.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return fmt.Errorf("%w: %v", ErrMetricExists, err)
		}
		return err
	}
	return nil
}

// register 按全名注册，同名指标无论 help 或标签是否一致都返回 ErrMetricExists
func (c *Client) register(name string, col prometheus.Collector) error {
	fq := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.names[fq]; ok {
		return fmt.Errorf("%w: %s", ErrMetricExists, fq)
	}
	if err := c.Register(col); err != nil {
		return err
	}
	c.names[fq] = struct{}{}
	return nil
}

// NewCounter 创建并注册 Counter
func (c *Client) NewCounter(name, help string, labels ...string) (*CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	if err := c.register(name, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// NewGauge 创建并注册 Gauge
func (c *Client) NewGauge(name, help string, labels ...string) (*GaugeVec, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	if err := c.register(name, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// NewHistogram 创建并注册 Histogram，buckets 为空时使用默认桶
func (c *Client) NewHistogram(name, help string, buckets []float64, labels ...string) (*HistogramVec, error) {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: c.config.ConstLabels,
	}, labels)
	if err := c.register(name, vec); err != nil {
		return nil, err
	}
	return vec, nil
}
