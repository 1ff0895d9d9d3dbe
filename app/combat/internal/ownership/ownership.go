// Package ownership 维护 zone 的权威租约
//
// 每个 zone 对应一个 redis 锁，持有锁的节点是该 zone 的唯一权威，
// 负责运行仲裁与阶段推进；失去锁后立即切换为只读。
package ownership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/database/redis"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

var (
	ErrInvalidConfig = errors.New("ownership: renew interval must be shorter than ttl")
	ErrNoBackend     = errors.New("ownership: enabled without a lock backend")
)

// Config 租约配置
type Config struct {
	// Enabled 为 false 时本节点是所有已配置 zone 的权威
	Enabled       bool          `mapstructure:"enabled" json:"enabled"`
	KeyPrefix     string        `mapstructure:"key_prefix" json:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl" json:"ttl"`
	RenewInterval time.Duration `mapstructure:"renew_interval" json:"renew_interval"`

	Redis redis.Config `mapstructure:"redis" json:"redis"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		KeyPrefix:     "xdooria:combat:zone:",
		TTL:           10 * time.Second,
		RenewInterval: 3 * time.Second,
	}
}

// Locker 单个 zone 的分布式锁
type Locker interface {
	Key() string
	TryLock(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockerFactory 按 key 创建锁
type LockerFactory func(key string) Locker

// RedisLockers 基于 redis 的锁工厂
func RedisLockers(client *redis.Client, owner string, ttl time.Duration) LockerFactory {
	return func(key string) Locker {
		return redis.NewLock(client, key, owner, ttl)
	}
}

type lease struct {
	zone   string
	owners *world.OwnerTable
	lock   Locker
	held   bool
}

// Leaser 管理本节点全部 zone 的租约
type Leaser struct {
	config  *Config
	logger  logger.Logger
	lockers LockerFactory

	mu     sync.Mutex
	leases []*lease

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建租约管理器，lockers 仅在启用时使用
func New(cfg *Config, lockers LockerFactory, l logger.Logger) (*Leaser, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge ownership config: %w", err)
	}
	if newCfg.Enabled {
		if lockers == nil {
			return nil, ErrNoBackend
		}
		if newCfg.RenewInterval <= 0 || newCfg.RenewInterval >= newCfg.TTL {
			return nil, ErrInvalidConfig
		}
	}
	return &Leaser{
		config:  newCfg,
		logger:  l.Named("ownership"),
		lockers: lockers,
	}, nil
}

// Add 登记 zone，未启用时直接成为权威
func (l *Leaser) Add(zoneID string, owners *world.OwnerTable) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ls := &lease{zone: zoneID, owners: owners}
	if !l.config.Enabled {
		ls.held = true
		owners.SetAll(true)
	} else {
		ls.lock = l.lockers(l.config.KeyPrefix + zoneID)
		owners.SetAll(false)
	}
	l.leases = append(l.leases, ls)
}

// Held 本节点是否持有 zone 租约
func (l *Leaser) Held(zoneID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ls := range l.leases {
		if ls.zone == zoneID {
			return ls.held
		}
	}
	return false
}

// Renew 尝试获取或续期全部租约
func (l *Leaser) Renew(ctx context.Context) {
	if !l.config.Enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ls := range l.leases {
		if ls.held {
			if err := ls.lock.Refresh(ctx); err != nil {
				l.lose(ls, err)
			}
			continue
		}
		l.acquire(ctx, ls)
	}
}

func (l *Leaser) acquire(ctx context.Context, ls *lease) {
	ok, err := ls.lock.TryLock(ctx)
	if err != nil {
		l.logger.Warn("failed to acquire zone lease", "zone", ls.zone, "key", ls.lock.Key(), "error", err)
		return
	}
	// 续期失败但锁仍属于本节点时直接恢复
	if !ok && ls.lock.Refresh(ctx) == nil {
		ok = true
	}
	if !ok {
		return
	}
	ls.held = true
	ls.owners.SetAll(true)
	l.logger.Info("zone lease acquired", "zone", ls.zone, "key", ls.lock.Key())
}

func (l *Leaser) lose(ls *lease, err error) {
	ls.held = false
	ls.owners.SetAll(false)
	l.logger.Warn("zone lease lost", "zone", ls.zone, "key", ls.lock.Key(), "error", err)
}

// Start 立即尝试获取租约并周期续期
func (l *Leaser) Start() error {
	if !l.config.Enabled {
		l.logger.Info("ownership disabled, node is authoritative for all configured zones")
		return nil
	}

	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.renewOnce(ctx)

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.config.RenewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.renewOnce(ctx)
			}
		}
	}()

	l.logger.Info("ownership leaser started", "ttl", l.config.TTL, "renew_interval", l.config.RenewInterval)
	return nil
}

func (l *Leaser) renewOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, l.config.RenewInterval)
	defer cancel()
	l.Renew(ctx)
}

// Stop 停止续期并释放持有的租约
func (l *Leaser) Stop() error {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	ctx, stop := context.WithTimeout(context.Background(), l.config.RenewInterval)
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, ls := range l.leases {
		if !ls.held {
			continue
		}
		ls.held = false
		ls.owners.SetAll(false)
		if err := ls.lock.Unlock(ctx); err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", ls.zone, err))
		}
	}
	l.logger.Info("ownership leaser stopped")
	return errors.Join(errs...)
}
