// Package spawner 按配置为 zone 补充 Agent：启动时一次补满，之后按 cron 周期补齐缺口
package spawner

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

var ErrNoEntries = errors.New("spawner: no entries")

// Entry 单条出生规则
type Entry struct {
	Archetype string    `mapstructure:"archetype" json:"archetype" validate:"required"`
	Count     int       `mapstructure:"count" json:"count" validate:"gt=0"`
	Center    geom.Vec2 `mapstructure:"center" json:"center"`
	Radius    float64   `mapstructure:"radius" json:"radius" validate:"gte=0"`
	// Faction 为空时使用 Archetype 阵营
	Faction string `mapstructure:"faction" json:"faction"`
	// Cron 补齐周期，支持 "@every 30s" 等描述符，为空表示只在启动时补满
	Cron string `mapstructure:"cron" json:"cron"`
}

// Target 出生目标，由 zone 实现
type Target interface {
	ID() string
	Owned() bool
	Spawn(arch *agent.Archetype, pos geom.Vec2, faction string) (agent.View, error)
	Alive(netID uint64) bool
}

// Resolver 按 ID 解析 Archetype
type Resolver interface {
	Archetype(id string) (*agent.Archetype, error)
}

// ResolverFunc 函数式 Resolver
type ResolverFunc func(id string) (*agent.Archetype, error)

func (f ResolverFunc) Archetype(id string) (*agent.Archetype, error) {
	return f(id)
}

type rule struct {
	target Target
	entry  Entry
	live   []uint64
}

// Spawner 管理全部 zone 的出生规则
type Spawner struct {
	resolve Resolver
	logger  logger.Logger
	cron    *cron.Cron

	mu    sync.Mutex
	rules []*rule
	rng   *rand.Rand
}

// Option 选项
type Option func(*Spawner)

// WithSeed 固定出生位置随机种子
func WithSeed(seed uint64) Option {
	return func(s *Spawner) {
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// New 创建 Spawner
func New(resolve Resolver, l logger.Logger, opts ...Option) *Spawner {
	s := &Spawner{
		resolve: resolve,
		logger:  l.Named("spawner"),
		cron:    cron.New(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 为 zone 注册出生规则
func (s *Spawner) Add(t Target, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: zone %s", ErrNoEntries, t.ID())
	}
	for i := range entries {
		if err := config.Validate(&entries[i]); err != nil {
			return fmt.Errorf("spawner: zone %s entry %d: %w", t.ID(), i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		r := &rule{target: t, entry: e}
		if e.Cron != "" {
			if _, err := s.cron.AddFunc(e.Cron, func() { s.topUp(r) }); err != nil {
				return fmt.Errorf("spawner: zone %s cron %q: %w", t.ID(), e.Cron, err)
			}
		}
		s.rules = append(s.rules, r)
	}
	return nil
}

// Fill 补齐全部规则，返回本次出生数量
func (s *Spawner) Fill() int {
	s.mu.Lock()
	rules := slices.Clone(s.rules)
	s.mu.Unlock()

	total := 0
	for _, r := range rules {
		total += s.topUp(r)
	}
	return total
}

// topUp 补齐单条规则的缺口，非权威 zone 跳过
func (s *Spawner) topUp(r *rule) int {
	if !r.target.Owned() {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.live = slices.DeleteFunc(r.live, func(id uint64) bool { return !r.target.Alive(id) })
	missing := r.entry.Count - len(r.live)
	if missing <= 0 {
		return 0
	}

	arch, err := s.resolve.Archetype(r.entry.Archetype)
	if err != nil {
		s.logger.Warn("failed to resolve archetype",
			"zone", r.target.ID(),
			"archetype", r.entry.Archetype,
			"error", err,
		)
		return 0
	}

	spawned := 0
	for range missing {
		v, err := r.target.Spawn(arch, s.point(r.entry.Center, r.entry.Radius), r.entry.Faction)
		if err != nil {
			s.logger.Warn("spawn failed",
				"zone", r.target.ID(),
				"archetype", arch.ID,
				"error", err,
			)
			break
		}
		r.live = append(r.live, v.NetID)
		spawned++
	}
	if spawned > 0 {
		s.logger.Info("agents spawned",
			"zone", r.target.ID(),
			"archetype", arch.ID,
			"count", spawned,
		)
	}
	return spawned
}

// point 圆内均匀分布
func (s *Spawner) point(center geom.Vec2, radius float64) geom.Vec2 {
	if radius <= 0 {
		return center
	}
	r := radius * math.Sqrt(s.rng.Float64())
	return center.Add(geom.FromAngle(s.rng.Float64() * 2 * math.Pi).Scale(r))
}

// Start 补满后启动 cron
func (s *Spawner) Start() error {
	n := s.Fill()
	s.cron.Start()
	s.logger.Info("spawner started", "entries", len(s.cron.Entries()), "spawned", n)
	return nil
}

// Stop 停止 cron 并等待正在执行的补齐任务
func (s *Spawner) Stop() error {
	<-s.cron.Stop().Done()
	s.logger.Info("spawner stopped")
	return nil
}
