package sentry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

// Reporter 错误上报接口，zone 依赖它而非具体客户端
type Reporter interface {
	CaptureException(err error, tags map[string]string)
	RecoverPanic(recovered any, tags map[string]string)
}

// Option 客户端选项
type Option func(*sentry.ClientOptions)

// WithBeforeSend 事件发送前回调，返回 nil 丢弃事件
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = fn
	}
}

// Stats 上报统计
type Stats struct {
	EventsTotal    uint64 `json:"events_total"`
	EventsCaptured uint64 `json:"events_captured"`
	EventsDropped  uint64 `json:"events_dropped"`
}

// Client Sentry 客户端，未启用时 hub 为 nil
type Client struct {
	hub    *sentry.Hub
	config *Config
	closed atomic.Bool

	stats struct {
		eventsTotal    atomic.Uint64
		eventsCaptured atomic.Uint64
		eventsDropped  atomic.Uint64
	}
}

// New 创建 Sentry 客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: newCfg}
	if !newCfg.Enabled {
		return c, nil
	}

	options := newCfg.toClientOptions()
	for _, opt := range opts {
		opt(&options)
	}
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(newCfg.Tags)
	})
	c.hub = hub
	return c, nil
}

// Enabled 是否真正上报
func (c *Client) Enabled() bool {
	return c != nil && c.hub != nil && !c.closed.Load()
}

// CaptureException 上报错误
func (c *Client) CaptureException(err error, tags map[string]string) {
	if !c.Enabled() || err == nil {
		return
	}
	c.capture(tags, func(h *sentry.Hub) *sentry.EventID {
		return h.CaptureException(err)
	})
}

// RecoverPanic 上报已恢复的 panic，不重新抛出
func (c *Client) RecoverPanic(recovered any, tags map[string]string) {
	if !c.Enabled() || recovered == nil {
		return
	}
	c.capture(tags, func(h *sentry.Hub) *sentry.EventID {
		return h.RecoverWithContext(context.Background(), recovered)
	})
}

func (c *Client) capture(tags map[string]string, fn func(*sentry.Hub) *sentry.EventID) {
	c.stats.eventsTotal.Add(1)

	var id *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		id = fn(c.hub)
	})

	if id != nil && *id != "" {
		c.stats.eventsCaptured.Add(1)
	} else {
		c.stats.eventsDropped.Add(1)
	}
}

// Flush 等待事件上报完成
func (c *Client) Flush(timeout time.Duration) bool {
	if c.hub == nil {
		return true
	}
	return c.hub.Flush(timeout)
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.stats.eventsTotal.Load(),
		EventsCaptured: c.stats.eventsCaptured.Load(),
		EventsDropped:  c.stats.eventsDropped.Load(),
	}
}
