package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-combat/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-combat/pkg/web/validator"
)

// Option 服务选项
type Option func(*Server)

// WithRegisterer 启用 HTTP 指标并注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.registerer = reg
	}
}

// Server Web 服务，实现 Start/Stop 随应用启停
type Server struct {
	engine     *gin.Engine
	config     *Config
	logger     logger.Logger
	registerer prometheus.Registerer
	limiter    *middleware.RateLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// NewServer 创建 Web 服务
func NewServer(cfg *Config, l logger.Logger, opts ...Option) (*Server, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if l == nil {
		l = logger.Default()
	}

	s := &Server{
		config: newCfg,
		logger: l.Named("web.server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validator.Init(); err != nil {
		return nil, fmt.Errorf("failed to init validator: %w", err)
	}
	gin.SetMode(newCfg.Mode)
	engine := gin.New()
	engine.Use(middleware.Logger(s.logger))
	if s.registerer != nil {
		m, err := metrics.New(s.registerer)
		if err != nil {
			return nil, err
		}
		engine.Use(middleware.Metrics(m))
	}
	if len(newCfg.CORSOrigins) > 0 {
		engine.Use(middleware.CORS(newCfg.CORSOrigins))
	}
	if rl := newCfg.RateLimit; rl.RequestsPerSecond > 0 {
		s.limiter = middleware.NewRateLimiter(s.logger, &middleware.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
			MaxClients:        rl.MaxClients,
			ClientTTL:         rl.ClientTTL,
			SkipPaths:         rl.SkipPaths,
		})
		engine.Use(middleware.RateLimit(s.limiter))
	}
	// 最内层恢复，外层的日志和指标能观察到 500
	engine.Use(middleware.Recovery(s.logger))
	s.engine = engine
	return s, nil
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler 接口
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr 实际监听地址，未启动时返回配置地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Start 监听并在后台提供服务
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.listener = ln
	s.serveErr = make(chan error, 1)
	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv, errCh := s.server, s.serveErr
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "error", err)
		}
		errCh <- err
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, errCh := s.server, s.serveErr
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotStarted
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-errCh

	s.logger.Info("http server stopped")
	return nil
}
