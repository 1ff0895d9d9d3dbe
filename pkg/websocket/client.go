package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithClientLogger 设置日志
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnConnected 每次连接建立后回调
func WithOnConnected(fn func(attempt int)) ClientOption {
	return func(c *Client) { c.onConnected = fn }
}

// Client 只读 WebSocket 客户端，断线后按指数退避重连
type Client struct {
	config *ClientConfig
	dialer *websocket.Dialer
	header http.Header
	logger logger.Logger

	onConnected func(attempt int)
}

// NewClient 创建客户端
func NewClient(cfg *ClientConfig, opts ...ClientOption) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultClientConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge websocket client config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: newCfg,
		dialer: &websocket.Dialer{HandshakeTimeout: newCfg.DialTimeout},
		header: make(http.Header),
		logger: logger.NewNoop(),
	}
	for k, v := range newCfg.Headers {
		c.header.Set(k, v)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial 建立一次连接
func (c *Client) Dial(ctx context.Context) (*Connection, error) {
	wsConn, resp, err := c.dialer.DialContext(ctx, c.config.URL, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.config.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.config.URL, err)
	}
	return NewConnection(wsConn,
		WithConnectionLogger(c.logger),
		WithTimeouts(c.config.ReadTimeout, c.config.DialTimeout),
	), nil
}

// Run 持续接收消息直到 ctx 结束，连接断开后自动重连
func (c *Client) Run(ctx context.Context, onMessage func(*Message)) error {
	backoff := c.config.ReconnectInterval
	for attempt := 1; ; attempt++ {
		conn, err := c.Dial(ctx)
		if err == nil {
			backoff = c.config.ReconnectInterval
			if c.onConnected != nil {
				c.onConnected(attempt)
			}
			c.logger.Info("websocket connected", "url", c.config.URL, "attempt", attempt)

			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			err = conn.ReadLoop(func(_ *Connection, msg *Message) { onMessage(msg) })
			stop()
		}

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("websocket disconnected, retrying", "url", c.config.URL, "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.config.MaxReconnectInterval)
	}
}
