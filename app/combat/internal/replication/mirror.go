package replication

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/xdooria-combat/app/combat/internal/zone"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/framer"
	"github.com/lk2023060901/xdooria-combat/pkg/geom"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/serializer"
	"github.com/lk2023060901/xdooria-combat/pkg/websocket"
)

var (
	ErrUnexpectedOp = errors.New("replication: unexpected frame op")
	ErrWrongZone    = errors.New("replication: frame for another zone")
)

// Replica 非权威节点看到的 Agent，只有位姿与阶段
type Replica struct {
	NetID     uint64    `json:"net_id"`
	Archetype string    `json:"archetype"`
	Pos       geom.Vec2 `json:"pos"`
	Facing    geom.Vec2 `json:"facing"`
	State     string    `json:"state"`
	Phase     string    `json:"phase"`
}

// Mirror 订阅权威节点的快照
type Mirror struct {
	config *MirrorConfig
	logger logger.Logger
	framer *framer.Framer
	client *websocket.Client

	mu       sync.RWMutex
	tick     uint64
	simTime  time.Duration
	updated  time.Time
	replicas map[uint64]Replica

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMirror 创建订阅者
func NewMirror(cfg *MirrorConfig, l logger.Logger) (*Mirror, error) {
	newCfg, err := config.MergeConfig(&MirrorConfig{Frame: *framer.DefaultConfig()}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge mirror config: %w", err)
	}
	newCfg.Enabled = true
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("invalid mirror config: %w", err)
	}
	f, err := framer.New(&newCfg.Frame)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(newCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror url: %w", err)
	}
	q := u.Query()
	q.Set("zone", newCfg.Zone)
	u.RawQuery = q.Encode()

	clientCfg := newCfg.Client
	clientCfg.URL = u.String()
	if newCfg.Token != "" {
		clientCfg.Headers = map[string]string{"Authorization": "Bearer " + newCfg.Token}
	}

	m := &Mirror{
		config:   newCfg,
		logger:   l.Named("mirror").WithFields("zone", newCfg.Zone),
		framer:   f,
		replicas: make(map[uint64]Replica),
	}
	m.client, err = websocket.NewClient(&clientCfg, websocket.WithClientLogger(m.logger))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Apply 解码一帧并替换本地副本，过期帧被忽略
func (m *Mirror) Apply(frame []byte) error {
	h, payload, err := m.framer.Decode(frame)
	if err != nil {
		return err
	}
	if h.Op != OpSnapshot {
		return fmt.Errorf("%w: %d", ErrUnexpectedOp, h.Op)
	}

	var snap zone.Snapshot
	if err := serializer.Decode(payload, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Zone != m.config.Zone {
		return fmt.Errorf("%w: %s", ErrWrongZone, snap.Zone)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Tick <= m.tick {
		return nil
	}
	replicas := make(map[uint64]Replica, len(snap.Agents))
	for _, a := range snap.Agents {
		replicas[a.NetID] = Replica{
			NetID:     a.NetID,
			Archetype: a.Archetype,
			Pos:       a.Pos,
			Facing:    a.Facing,
			State:     a.State,
			Phase:     a.Phase,
		}
	}
	m.replicas = replicas
	m.tick = snap.Tick
	m.simTime = snap.SimTime
	m.updated = time.Now()
	return nil
}

// Tick 最近应用的帧序号
func (m *Mirror) Tick() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

// Updated 最近一次应用帧的本地时间
func (m *Mirror) Updated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated
}

// Replicas 当前副本，按网络 ID 排序
func (m *Mirror) Replicas() []Replica {
	m.mu.RLock()
	out := make([]Replica, 0, len(m.replicas))
	for _, r := range m.replicas {
		out = append(out, r)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Replica) int { return cmp.Compare(a.NetID, b.NetID) })
	return out
}

// Replica 单个副本
func (m *Mirror) Replica(netID uint64) (Replica, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.replicas[netID]
	return r, ok
}

// Start 后台订阅，断线自动重连
func (m *Mirror) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		_ = m.client.Run(ctx, func(msg *websocket.Message) {
			if err := m.Apply(msg.Data); err != nil {
				m.logger.Warn("failed to apply snapshot frame", "error", err)
			}
		})
	}()

	m.logger.Info("mirror started", "url", m.config.URL)
	return nil
}

// Stop 停止订阅
func (m *Mirror) Stop() error {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.logger.Info("mirror stopped")
	return nil
}
