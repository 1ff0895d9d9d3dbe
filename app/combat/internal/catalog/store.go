package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/gameconfig"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Config 配置表加载
type Config struct {
	DataDir   string `mapstructure:"data_dir" json:"data_dir" validate:"required"`
	HotReload bool   `mapstructure:"hot_reload" json:"hot_reload"`
	// Debounce 合并短时间内的多次文件变更
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "data",
		Debounce: 500 * time.Millisecond,
	}
}

// Store 持有当前表，热更新时整体替换
type Store struct {
	config *Config
	load   gameconfig.JsonLoader
	logger logger.Logger

	current atomic.Pointer[Catalog]

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	onReload []func(*Catalog)
}

// NewStore 创建并立即加载一次，失败时返回错误
func NewStore(cfg *Config, l logger.Logger) (*Store, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge catalog config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, err
	}

	s := &Store{
		config: newCfg,
		logger: l.Named("catalog"),
	}
	s.load = gameconfig.NewFileJsonLoader(newCfg.DataDir, s.logger)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current 当前表
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Archetype 从当前技能表解析 Archetype，只影响之后的出生
func (s *Store) Archetype(id string) (*agent.Archetype, error) {
	return s.Current().Archetype(id)
}

// OnReload 注册热更新回调
func (s *Store) OnReload(fn func(*Catalog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Reload 重新加载，失败时保留旧表
func (s *Store) Reload() error {
	c, err := Load(s.load)
	if err != nil {
		s.logger.Error("catalog load failed", "dir", s.config.DataDir, "error", err)
		return err
	}

	prev := s.current.Swap(c)
	s.logger.Info("catalog loaded",
		"dir", s.config.DataDir,
		"abilities", c.Abilities.Len(),
		"archetypes", c.Archetypes.Len(),
		"reload", prev != nil,
	)

	if prev != nil {
		s.mu.Lock()
		callbacks := append([]func(*Catalog){}, s.onReload...)
		s.mu.Unlock()
		for _, fn := range callbacks {
			fn(c)
		}
	}
	return nil
}

// Start 开启热更新监听，返回时目录已在监听中
func (s *Store) Start() error {
	if !s.config.HotReload {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	w, err := config.NewDirWatcher(s.config.DataDir, "*.json", s.config.Debounce)
	if err != nil {
		return fmt.Errorf("failed to start catalog watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		err := w.Run(ctx,
			func(names []string) {
				s.logger.Info("catalog files changed", "files", names)
				_ = s.Reload()
			},
			func(err error) {
				s.logger.Warn("catalog watch error", "error", err)
			},
		)
		if err != nil {
			s.logger.Error("catalog watcher stopped", "error", err)
		}
	}()
	s.logger.Info("catalog hot reload enabled", "dir", s.config.DataDir)
	return nil
}

// Stop 停止监听
func (s *Store) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
