package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")
	ErrStopTimeout       = errors.New("application stop timeout")
)

// Application 应用接口
type Application interface {
	Run() error
	Shutdown() error
	Context() context.Context
	Logger(name string) logger.Logger
	AppLogger() logger.Logger
}

// Server 随应用启停的服务（HTTP、websocket、zone 调度等）
type Server interface {
	Start() error
	Stop() error
}

// Closer 资源清理接口（Redis、Kafka、Sentry 等）
type Closer interface {
	Close() error
}

// BaseApp Application 的基础实现
type BaseApp struct {
	opts     Options
	logger   logger.Logger
	registry *LoggerRegistry
	servers  []Server
	closers  []Closer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	stopErr error
}

// NewBaseApp 创建 BaseApp
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &BaseApp{
		opts:     o,
		logger:   o.Logger.Named(o.Name),
		registry: NewLoggerRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if o.LogConfig != nil {
		if l, err := logger.New(o.LogConfig); err == nil {
			a.logger = l.Named(o.Name)
			logger.SetDefault(l)
		}
	}

	return a
}

// ID 应用实例 ID
func (a *BaseApp) ID() string {
	return a.opts.ID
}

// Context 应用生命周期上下文，Shutdown 时取消
func (a *BaseApp) Context() context.Context {
	return a.ctx
}

// AppLogger 应用主日志
func (a *BaseApp) AppLogger() logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// Logger 获取具名日志，未注册时返回主日志的子 logger
func (a *BaseApp) Logger(name string) logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if l := a.registry.Get(name); l != nil {
		return l
	}
	return a.logger.Named(name)
}

// Run 启动全部服务并阻塞，直到收到退出信号
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	if len(a.opts.NamedLoggers) > 0 {
		if err := a.registry.InitLoggers(a.opts.NamedLoggers); err != nil {
			a.logger.Error("failed to initialize named loggers", "error", err)
			return err
		}
	}

	a.logger.Info("application starting", append(GetInfo().Fields(), "id", a.opts.ID)...)

	for i, srv := range a.servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "index", i, "error", err)
			_ = a.Shutdown()
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-a.ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown 并行停止服务，再按注册的逆序关闭资源
// 重复调用会等待第一次调用完成
func (a *BaseApp) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		<-a.done
		return a.stopErr
	}
	defer close(a.done)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancel()
	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.StopTimeout)
	defer cancel()

	g := new(errgroup.Group)
	for _, srv := range a.servers {
		g.Go(func() error {
			if err := srv.Stop(); err != nil {
				a.logger.Error("failed to stop server", "error", err)
				return err
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var stopErr error
	select {
	case stopErr = <-done:
		a.logger.Info("all servers stopped")
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout, forcing exit", "timeout", a.opts.StopTimeout)
		stopErr = ErrStopTimeout
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}

	a.registry.SyncAll()
	_ = a.logger.Sync()

	a.logger.Info("application exited")
	a.stopErr = stopErr
	return stopErr
}

// AppendServer 添加服务
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源清理组件
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}
