// Package replication 把 zone 快照复制给观察者
//
// 权威节点每帧把快照编码为 msgpack，经 framer 压缩并附带校验后广播；
// 非权威节点通过 Mirror 订阅，只复制位姿与阶段，从不运行仲裁或阶段推进。
package replication

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/framer"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/security"
	"github.com/lk2023060901/xdooria-combat/pkg/serializer"
	"github.com/lk2023060901/xdooria-combat/pkg/websocket"
)

var (
	ErrZoneRequired = errors.New("replication: zone query parameter is required")
	ErrUnknownZone  = errors.New("replication: unknown zone")
	ErrNotStarted   = errors.New("replication: hub not started")
)

// Observer 复制指标
type Observer interface {
	SetObservers(zone string, n int)
	ObserveFrame(zone string, size int)
}

type nopObserver struct{}

func (nopObserver) SetObservers(string, int)  {}
func (nopObserver) ObserveFrame(string, int) {}

// Session 已鉴权的观察者
type Session struct {
	Zone    string
	Subject string
	limiter *rate.Limiter
}

// Option Hub 选项
type Option func(*Hub)

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithZoneLookup 拒绝订阅不存在的 zone
func WithZoneLookup(fn func(id string) bool) Option {
	return func(h *Hub) { h.known = fn }
}

// Hub 观察者连接中心，实现 zone.Publisher
type Hub struct {
	config   *Config
	logger   logger.Logger
	framer   *framer.Framer
	jwt      *security.JWTManager
	ws       *websocket.Server
	observer Observer
	known    func(id string) bool

	countMu sync.Mutex
	counts  map[string]int

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

var _ zone.Publisher = (*Hub)(nil)

// NewHub 创建复制中心
func NewHub(cfg *Config, jwt *security.JWTManager, l logger.Logger, opts ...Option) (*Hub, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge replication config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("invalid replication config: %w", err)
	}
	f, err := framer.New(&newCfg.Frame)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		config:   newCfg,
		logger:   l.Named("replication"),
		framer:   f,
		jwt:      jwt,
		observer: nopObserver{},
		counts:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.ws, err = websocket.NewServer(&newCfg.WebSocket,
		websocket.WithServerLogger(h.logger),
		websocket.WithHandler(h),
		websocket.WithAuthenticator(h.authenticate),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Handler 观察者入口，可挂载到其他 HTTP 服务
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(h.config.Path, h.ws)
	return mux
}

// authenticate 升级前校验 zone 与令牌
func (h *Hub) authenticate(r *http.Request) (any, error) {
	zoneID := r.URL.Query().Get("zone")
	if zoneID == "" {
		return nil, ErrZoneRequired
	}
	if h.known != nil && !h.known(zoneID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	claims, err := h.jwt.Authorize(token, zoneID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Zone:    zoneID,
		Subject: claims.Subject,
		limiter: rate.NewLimiter(h.config.limit(), max(h.config.Burst, 1)),
	}, nil
}

func sessionOf(conn *websocket.Connection) (*Session, bool) {
	v, ok := conn.GetMetadata(websocket.AuthMetadataKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func (h *Hub) OnConnect(conn *websocket.Connection) error {
	s, ok := sessionOf(conn)
	if !ok {
		return security.ErrTokenMissing
	}
	n := h.adjust(s.Zone, 1)
	h.logger.Info("observer connected",
		"conn_id", conn.ID(),
		"zone", s.Zone,
		"subject", s.Subject,
		"observers", n,
	)
	return nil
}

// OnMessage 观察者是只读的，入站消息直接忽略
func (h *Hub) OnMessage(*websocket.Connection, *websocket.Message) {}

func (h *Hub) OnDisconnect(conn *websocket.Connection, err error) {
	s, ok := sessionOf(conn)
	if !ok {
		return
	}
	n := h.adjust(s.Zone, -1)
	h.logger.Info("observer disconnected",
		"conn_id", conn.ID(),
		"zone", s.Zone,
		"observers", n,
		"error", err,
	)
}

func (h *Hub) adjust(zoneID string, delta int) int {
	h.countMu.Lock()
	h.counts[zoneID] += delta
	n := h.counts[zoneID]
	h.countMu.Unlock()

	h.observer.SetObservers(zoneID, n)
	return n
}

// Observers zone 当前观察者数
func (h *Hub) Observers(zoneID string) int {
	h.countMu.Lock()
	defer h.countMu.Unlock()
	return h.counts[zoneID]
}

// Encode 把快照编码为一帧
func (h *Hub) Encode(s *zone.Snapshot) ([]byte, error) {
	payload, err := serializer.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return h.framer.Encode(OpSnapshot, payload)
}

// PublishSnapshot 广播快照，没有观察者时不编码
// 快照是全量状态，被限流跳过的帧不影响观察者后续的状态
func (h *Hub) PublishSnapshot(s *zone.Snapshot) {
	if h.Observers(s.Zone) == 0 {
		return
	}
	frame, err := h.Encode(s)
	if err != nil {
		h.logger.Error("failed to encode snapshot", "zone", s.Zone, "tick", s.Tick, "error", err)
		return
	}

	delivered := h.ws.Broadcast(websocket.NewBinaryMessage(frame), func(conn *websocket.Connection) bool {
		sess, ok := sessionOf(conn)
		return ok && sess.Zone == s.Zone && sess.limiter.Allow()
	})
	if delivered > 0 {
		h.observer.ObserveFrame(s.Zone, len(frame)*delivered)
	}
}

// Addr 实际监听地址
func (h *Hub) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.config.Addr
}

// Start 监听观察者连接
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.config.Addr, err)
	}
	h.listener = ln
	h.serveErr = make(chan error, 1)
	h.server = &http.Server{Handler: h.Handler()}

	srv, errCh := h.server, h.serveErr
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("replication server stopped unexpectedly", "error", err)
		}
		errCh <- err
	}()

	h.logger.Info("replication hub started",
		"addr", ln.Addr().String(),
		"path", h.config.Path,
		"compression", h.config.Frame.Compression,
	)
	return nil
}

// Stop 断开全部观察者并关闭监听
func (h *Hub) Stop() error {
	h.mu.Lock()
	srv, errCh := h.server, h.serveErr
	h.server = nil
	h.mu.Unlock()

	// 升级后的连接不受 http.Server.Shutdown 管理
	if err := h.ws.Close(); err != nil {
		h.logger.Warn("failed to close observers", "error", err)
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("replication server forced to shutdown: %w", err)
	}
	<-errCh

	h.logger.Info("replication hub stopped")
	return nil
}

