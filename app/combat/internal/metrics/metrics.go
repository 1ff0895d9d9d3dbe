// Package metrics combat 服务指标
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/agent"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/metrics/sliding"
	"github.com/lk2023060901/xdooria-combat/pkg/metrics/system"
	"github.com/lk2023060901/xdooria-combat/pkg/prometheus"
)

// logEntries 在 logger 创建前就需要存在，New 时注册
var logEntries = prom.NewCounterVec(prom.CounterOpts{
	Name: "combat_log_entries_total",
	Help: "Log entries at warn level or above",
}, []string{"level"})

// LogHook 统计 warn 及以上日志条数
func LogHook() logger.Hook {
	return logger.LevelCounterHook(zapcore.WarnLevel, func(level string) {
		logEntries.WithLabelValues(level).Inc()
	})
}

// Config 指标配置
type Config struct {
	// SystemCollectInterval 进程指标采集周期
	SystemCollectInterval time.Duration `mapstructure:"system_collect_interval" json:"system_collect_interval"`
	// SlidingWindow tick 耗时滑动窗口
	SlidingWindow sliding.WindowConfig `mapstructure:"sliding_window" json:"sliding_window"`
	// TickBuckets tick 耗时直方图（秒）
	TickBuckets []float64 `mapstructure:"tick_buckets" json:"tick_buckets"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		SystemCollectInterval: 5 * time.Second,
		SlidingWindow:         *sliding.DefaultWindowConfig(),
		TickBuckets:           []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}
}

// CombatMetrics combat 服务指标
type CombatMetrics struct {
	config *Config

	// zone 指标
	TickDuration *prometheus.HistogramVec // tick 耗时（按 zone）
	TickOverruns *prometheus.CounterVec   // 超出预算的 tick
	Agents       *prometheus.GaugeVec     // 存活 Agent 数
	AgentPanics  *prometheus.CounterVec   // Agent tick 内 panic
	Damage       *prometheus.CounterVec   // 造成的伤害
	Kills        *prometheus.CounterVec   // 击杀数

	// 技能指标
	AbilitiesStarted  *prometheus.CounterVec
	AbilitiesFinished *prometheus.CounterVec
	AbilitiesAborted  *prometheus.CounterVec
	PhaseTransitions  *prometheus.CounterVec
	StateChanges      *prometheus.CounterVec

	// 仲裁指标
	ArbitrationSelections *prometheus.CounterVec // 选中的特殊技能（按 archetype、ability）
	ArbitrationFallbacks  *prometheus.CounterVec // 无技能通过门槛

	// 复制指标
	Observers  *prometheus.GaugeVec
	FrameBytes *prometheus.CounterVec

	systemCollector *system.Collector

	mu      sync.Mutex
	windows map[string]*sliding.Window
	cancel  context.CancelFunc
	done    chan struct{}
}

// New 创建并注册指标
func New(cfg *Config, client *prometheus.Client) (*CombatMetrics, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge metrics config: %w", err)
	}

	sysCollector, err := system.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create system collector: %w", err)
	}

	m := &CombatMetrics{
		config:          newCfg,
		systemCollector: sysCollector,
		windows:         make(map[string]*sliding.Window),
	}

	type counter struct {
		dst    **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}
	counters := []counter{
		{&m.TickOverruns, "tick_overruns_total", "Zone ticks that exceeded the tick budget", []string{"zone"}},
		{&m.AgentPanics, "agent_panics_total", "Recovered panics inside an agent tick", []string{"zone"}},
		{&m.Damage, "damage_total", "Damage applied by agents", []string{"zone"}},
		{&m.Kills, "kills_total", "Agents killed", []string{"zone"}},
		{&m.AbilitiesStarted, "abilities_started_total", "Abilities that entered windup", []string{"ability"}},
		{&m.AbilitiesFinished, "abilities_finished_total", "Abilities that completed recovery", []string{"ability"}},
		{&m.AbilitiesAborted, "abilities_aborted_total", "Abilities aborted before completion", []string{"ability"}},
		{&m.PhaseTransitions, "phase_transitions_total", "Ability phase transitions", []string{"phase"}},
		{&m.StateChanges, "state_changes_total", "Agent coarse state changes", []string{"state"}},
		{&m.ArbitrationSelections, "arbitration_selections_total", "Special abilities selected by arbitration", []string{"archetype", "ability"}},
		{&m.ArbitrationFallbacks, "arbitration_fallbacks_total", "Arbitration passes with no ability over threshold", []string{"archetype"}},
		{&m.FrameBytes, "replication_frame_bytes_total", "Replication frame bytes broadcast", []string{"zone"}},
	}
	for _, c := range counters {
		if *c.dst, err = client.NewCounter(c.name, c.help, c.labels...); err != nil {
			return nil, err
		}
	}

	if m.Agents, err = client.NewGauge("agents", "Live agents per zone", "zone"); err != nil {
		return nil, err
	}
	if m.Observers, err = client.NewGauge("replication_observers", "Connected replication observers", "zone"); err != nil {
		return nil, err
	}
	if m.TickDuration, err = client.NewHistogram("tick_duration_seconds", "Zone step duration", newCfg.TickBuckets, "zone"); err != nil {
		return nil, err
	}

	if err := client.Register(logEntries); err != nil {
		return nil, err
	}
	if err := sysCollector.Register(client.Registry(), client.Config().Namespace); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveTick 记录一次 zone 步进耗时，超出 budget 计为超时
func (m *CombatMetrics) ObserveTick(zone string, took, budget time.Duration) {
	m.TickDuration.WithLabelValues(zone).Observe(took.Seconds())
	ok := budget <= 0 || took <= budget
	if !ok {
		m.TickOverruns.WithLabelValues(zone).Inc()
	}
	if w := m.window(zone); w != nil {
		w.Record(float64(took.Microseconds())/1000, ok)
	}
}

// TickStats zone 最近窗口内的 tick 统计（毫秒）
func (m *CombatMetrics) TickStats(zone string) sliding.Stats {
	if w := m.window(zone); w != nil {
		return w.GetStats()
	}
	return sliding.Stats{}
}

func (m *CombatMetrics) window(zone string) *sliding.Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.windows[zone]; ok {
		return w
	}
	cfg := m.config.SlidingWindow
	w, err := sliding.NewWindow(&cfg)
	if err != nil {
		return nil
	}
	m.windows[zone] = w
	return w
}

// ObserveSignal 按表现信号累计技能与阶段指标
func (m *CombatMetrics) ObserveSignal(s ability.Signal) {
	switch s.Name {
	case ability.SignalWindupStarted:
		m.AbilitiesStarted.WithLabelValues(s.Ability).Inc()
		m.PhaseTransitions.WithLabelValues(ability.PhaseWindup.String()).Inc()
	case ability.SignalCommitStarted:
		m.PhaseTransitions.WithLabelValues(ability.PhaseCommit.String()).Inc()
	case ability.SignalImpact:
		m.PhaseTransitions.WithLabelValues(ability.PhaseImpact.String()).Inc()
	case ability.SignalStoppageStarted:
		m.PhaseTransitions.WithLabelValues(ability.PhaseStoppage.String()).Inc()
	case ability.SignalRecoveryStarted:
		m.PhaseTransitions.WithLabelValues(ability.PhaseRecovery.String()).Inc()
	case ability.SignalFinished:
		m.AbilitiesFinished.WithLabelValues(s.Ability).Inc()
		m.PhaseTransitions.WithLabelValues(ability.PhaseIdle.String()).Inc()
	case ability.SignalAborted:
		m.AbilitiesAborted.WithLabelValues(s.Ability).Inc()
	case agent.SignalStateChanged:
		m.StateChanges.WithLabelValues(s.Detail).Inc()
	}
}

// ObserveArbitration 仲裁结果，selected 为空表示回退
func (m *CombatMetrics) ObserveArbitration(archetype, selected string) {
	if selected == "" {
		m.ArbitrationFallbacks.WithLabelValues(archetype).Inc()
		return
	}
	m.ArbitrationSelections.WithLabelValues(archetype, selected).Inc()
}

// ObserveDamage 记录伤害与击杀
func (m *CombatMetrics) ObserveDamage(zone string, amount int32, killed bool) {
	m.Damage.WithLabelValues(zone).Add(float64(amount))
	if killed {
		m.Kills.WithLabelValues(zone).Inc()
	}
}

// SetAgents 更新 zone 存活 Agent 数
func (m *CombatMetrics) SetAgents(zone string, n int) {
	m.Agents.WithLabelValues(zone).Set(float64(n))
}

// ObserveAgentPanic 记录一次 Agent tick 内的 panic
func (m *CombatMetrics) ObserveAgentPanic(zone string) {
	m.AgentPanics.WithLabelValues(zone).Inc()
}

// SetObservers 更新 zone 观察者数量
func (m *CombatMetrics) SetObservers(zone string, n int) {
	m.Observers.WithLabelValues(zone).Set(float64(n))
}

// ObserveFrame 记录一次广播的帧大小
func (m *CombatMetrics) ObserveFrame(zone string, size int) {
	m.FrameBytes.WithLabelValues(zone).Add(float64(size))
}

// SystemStats 最近一次进程资源采集
func (m *CombatMetrics) SystemStats() system.Stats {
	return m.systemCollector.GetStats()
}

// Start 启动进程指标采集
func (m *CombatMetrics) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		m.systemCollector.Run(ctx, m.config.SystemCollectInterval)
	}()
	return nil
}

// Stop 停止采集
func (m *CombatMetrics) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
