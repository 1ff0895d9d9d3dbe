package zone

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/util/conc"
)

// Manager 持有本节点的全部 zone，按固定频率在协程池中并行步进
type Manager struct {
	sim    *SimConfig
	logger logger.Logger
	pool   *conc.Pool[struct{}]

	mu    sync.RWMutex
	zones map[string]*Zone

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager 创建 zone 管理器
func NewManager(sim *SimConfig, l logger.Logger) (*Manager, error) {
	newSim, err := config.MergeConfig(DefaultSimConfig(), sim)
	if err != nil {
		return nil, fmt.Errorf("failed to merge sim config: %w", err)
	}
	if err := config.Validate(newSim); err != nil {
		return nil, fmt.Errorf("invalid sim config: %w", err)
	}
	pool, err := conc.NewPool[struct{}](newSim.Workers)
	if err != nil {
		return nil, err
	}
	return &Manager{
		sim:    newSim,
		logger: l.Named("zone.manager"),
		pool:   pool,
		zones:  make(map[string]*Zone),
	}, nil
}

// Sim 模拟参数
func (m *Manager) Sim() *SimConfig {
	return m.sim
}

// Add 加入 zone
func (m *Manager) Add(z *Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.zones[z.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrZoneExists, z.ID())
	}
	m.zones[z.ID()] = z
	return nil
}

// Zone 按 ID 查找
func (m *Manager) Zone(id string) (*Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	z, ok := m.zones[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	return z, nil
}

// Zones 全部 zone，按 ID 排序
func (m *Manager) Zones() []*Zone {
	m.mu.RLock()
	out := make([]*Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Zone) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// StepAll 并行步进本节点拥有权威的 zone
func (m *Manager) StepAll(ctx context.Context, dt time.Duration) error {
	owned := slices.DeleteFunc(m.Zones(), func(z *Zone) bool { return !z.Owned() })
	return conc.ForEach(m.pool, owned, func(z *Zone) error {
		z.Step(ctx, dt)
		return nil
	})
}

// Start 启动步进循环
func (m *Manager) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)

	m.logger.Info("zone manager started",
		"zones", len(m.Zones()),
		"tick_rate", m.sim.TickRate,
		"workers", m.pool.Cap(),
	)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.sim.Interval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := m.StepAll(ctx, dt); err != nil {
				m.logger.Error("zone step failed", "error", err)
			}
		}
	}
}

// Stop 停止步进循环并释放协程池
func (m *Manager) Stop() error {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.pool.Release()
	m.logger.Info("zone manager stopped")
	return nil
}
