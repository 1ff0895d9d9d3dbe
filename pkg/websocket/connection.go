package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Connection WebSocket 连接封装，写入由 WriteLoop 独占
type Connection struct {
	id   string
	conn *websocket.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration

	// 发送队列
	sendChan chan *Message

	logger logger.Logger

	// 元数据
	metadata sync.Map

	closed     atomic.Bool
	closeChan  chan struct{}
	closeOnce  sync.Once
	closeError error

	remoteAddr  string
	connectedAt time.Time
}

// ConnectionOption 连接选项
type ConnectionOption func(*Connection)

// WithConnectionLogger 设置日志
func WithConnectionLogger(l logger.Logger) ConnectionOption {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSendQueueSize 设置发送队列长度
func WithSendQueueSize(n int) ConnectionOption {
	return func(c *Connection) {
		if n > 0 {
			c.sendChan = make(chan *Message, n)
		}
	}
}

// WithTimeouts 设置读写超时，0 表示不设置
func WithTimeouts(read, write time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// NewConnection 创建连接
func NewConnection(conn *websocket.Conn, opts ...ConnectionOption) *Connection {
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		writeTimeout: 5 * time.Second,
		sendChan:     make(chan *Message, 64),
		closeChan:    make(chan struct{}),
		logger:       logger.NewNoop(),
		remoteAddr:   conn.RemoteAddr().String(),
		connectedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID 返回连接 ID
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr 返回远程地址
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// IsClosed 检查连接是否已关闭
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Done 连接关闭时关闭
func (c *Connection) Done() <-chan struct{} {
	return c.closeChan
}

// SetMetadata 设置元数据
func (c *Connection) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// GetMetadata 获取元数据
func (c *Connection) GetMetadata(key string) (any, bool) {
	return c.metadata.Load(key)
}

// Info 返回连接信息
func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:          c.id,
		RemoteAddr:  c.remoteAddr,
		ConnectedAt: c.connectedAt,
	}
}

// SendAsync 发送消息（非阻塞），队列满时返回 ErrSendQueueFull
func (c *Connection) SendAsync(msg *Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	select {
	case c.sendChan <- msg:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// ReadLoop 读取循环，阻塞直到连接出错或关闭
func (c *Connection) ReadLoop(handler func(*Connection, *Message)) error {
	defer c.Close()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			c.logger.Debug("websocket read error", "error", err, "conn_id", c.id)
			return err
		}

		if handler != nil {
			handler(c, &Message{Type: MessageType(msgType), Data: data})
		}
	}
}

// WriteLoop 写入循环，阻塞直到连接关闭
func (c *Connection) WriteLoop() {
	defer c.Close()

	for {
		select {
		case msg := <-c.sendChan:
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(int(msg.Type), msg.Data); err != nil {
				c.logger.Debug("websocket write error", "error", err, "conn_id", c.id)
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// Ping 发送 Ping
func (c *Connection) Ping() error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close 关闭连接
func (c *Connection) Close() error {
	return c.CloseWithError(nil)
}

// CloseWithError 带错误关闭连接
func (c *Connection) CloseWithError(err error) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeError = err
		close(c.closeChan)

		code, text := websocket.CloseNormalClosure, ""
		if err != nil {
			code, text = websocket.ClosePolicyViolation, err.Error()
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
	return nil
}

// CloseError 返回关闭原因
func (c *Connection) CloseError() error {
	return c.closeError
}

// IsUnexpectedClose 判断读错误是否为非正常断开
func IsUnexpectedClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway
	}
	return err != nil
}
