package websocket

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// AuthMetadataKey 鉴权结果在连接元数据中的键
const AuthMetadataKey = "auth"

// Handler 连接事件处理器
type Handler interface {
	// OnConnect 返回错误时立即关闭连接
	OnConnect(conn *Connection) error
	OnMessage(conn *Connection, msg *Message)
	OnDisconnect(conn *Connection, err error)
}

// Authenticator 在升级前鉴权，返回值保存到连接元数据
type Authenticator func(r *http.Request) (any, error)

// ServerOption 服务端选项
type ServerOption func(*Server)

// WithServerLogger 设置日志
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandler 设置连接事件处理器
func WithHandler(h Handler) ServerOption {
	return func(s *Server) { s.handler = h }
}

// WithAuthenticator 设置升级前鉴权
func WithAuthenticator(fn Authenticator) ServerOption {
	return func(s *Server) { s.authenticate = fn }
}

// Server WebSocket 服务端
type Server struct {
	config       *ServerConfig
	upgrader     *websocket.Upgrader
	logger       logger.Logger
	handler      Handler
	authenticate Authenticator

	conns sync.Map // map[connID]*Connection

	total   atomic.Int64
	active  atomic.Int64
	sent    atomic.Int64
	bytes   atomic.Int64
	dropped atomic.Int64

	mu      sync.RWMutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewServer 创建服务端
func NewServer(cfg *ServerConfig, opts ...ServerOption) (*Server, error) {
	newCfg, err := config.MergeConfig(DefaultServerConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge websocket config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:  newCfg,
		logger:  logger.NewNoop(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = &websocket.Upgrader{
		ReadBufferSize:   newCfg.ReadBufferSize,
		WriteBufferSize:  newCfg.WriteBufferSize,
		HandshakeTimeout: newCfg.HandshakeTimeout,
		CheckOrigin:      s.checkOrigin,
	}
	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin)
}

// ServeHTTP 实现 http.Handler 接口
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.active.Load() >= int64(s.config.MaxConnections) {
		http.Error(w, ErrServerFull.Error(), http.StatusServiceUnavailable)
		return
	}

	var auth any
	if s.authenticate != nil {
		var err error
		if auth, err = s.authenticate(r); err != nil {
			s.logger.Warn("websocket auth rejected", "error", err, "remote_addr", r.RemoteAddr)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	if s.config.MaxMessageSize > 0 {
		wsConn.SetReadLimit(s.config.MaxMessageSize)
	}

	conn := NewConnection(wsConn,
		WithConnectionLogger(s.logger),
		WithSendQueueSize(s.config.SendQueueSize),
		WithTimeouts(s.config.PongTimeout, s.config.WriteTimeout),
	)
	if auth != nil {
		conn.SetMetadata(AuthMetadataKey, auth)
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *Connection) {
	s.conns.Store(conn.ID(), conn)
	s.total.Add(1)
	s.active.Add(1)
	defer s.removeConnection(conn)

	if s.handler != nil {
		if err := s.handler.OnConnect(conn); err != nil {
			s.logger.Warn("websocket connect rejected", "error", err, "conn_id", conn.ID())
			_ = conn.CloseWithError(err)
			return
		}
	}

	if s.config.PongTimeout > 0 {
		conn.conn.SetPongHandler(func(string) error {
			return conn.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		})
	}

	go conn.WriteLoop()
	if s.config.PingInterval > 0 {
		go s.pingLoop(conn)
	}

	var onMessage func(*Connection, *Message)
	if s.handler != nil {
		onMessage = s.handler.OnMessage
	}
	_ = conn.ReadLoop(onMessage)
}

func (s *Server) pingLoop(conn *Connection) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				s.logger.Debug("websocket ping error", "error", err, "conn_id", conn.ID())
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		case <-s.closeCh:
			return
		}
	}
}

func (s *Server) removeConnection(conn *Connection) {
	if _, ok := s.conns.LoadAndDelete(conn.ID()); !ok {
		return
	}
	s.active.Add(-1)
	if s.handler != nil {
		s.handler.OnDisconnect(conn, conn.CloseError())
	}
}

// Broadcast 向 filter 接受的连接发送消息，队列已满的连接被断开
// filter 为 nil 时发送给全部连接，返回成功入队的连接数
func (s *Server) Broadcast(msg *Message, filter func(*Connection) bool) int {
	delivered := 0
	s.conns.Range(func(_, value any) bool {
		conn := value.(*Connection)
		if filter != nil && !filter(conn) {
			return true
		}
		switch err := conn.SendAsync(msg); err {
		case nil:
			delivered++
		case ErrSendQueueFull:
			s.dropped.Add(1)
			s.logger.Warn("dropping slow websocket connection", "conn_id", conn.ID(), "remote_addr", conn.RemoteAddr())
			_ = conn.CloseWithError(ErrSendQueueFull)
		}
		return true
	})

	s.sent.Add(int64(delivered))
	s.bytes.Add(int64(delivered * len(msg.Data)))
	return delivered
}

// Count 当前连接数
func (s *Server) Count() int {
	return int(s.active.Load())
}

// Connections 当前连接
func (s *Server) Connections() []*Connection {
	var out []*Connection
	s.conns.Range(func(_, value any) bool {
		out = append(out, value.(*Connection))
		return true
	})
	return out
}

// Stats 统计信息
func (s *Server) Stats() Stats {
	return Stats{
		TotalConnections:  s.total.Load(),
		ActiveConnections: s.active.Load(),
		MessagesSent:      s.sent.Load(),
		BytesSent:         s.bytes.Load(),
		Dropped:           s.dropped.Load(),
	}
}

// Close 关闭全部连接并等待处理结束
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	s.conns.Range(func(_, value any) bool {
		_ = value.(*Connection).Close()
		return true
	})
	s.wg.Wait()
	return nil
}
