// Package sliding 基于时间桶的滑动窗口统计，用于 zone tick 耗时和超时率
package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

// WindowConfig 滑动窗口配置
type WindowConfig struct {
	// 窗口大小
	WindowSize time.Duration `mapstructure:"window_size" json:"window_size"`
	// 桶数量
	BucketCount int `mapstructure:"bucket_count" json:"bucket_count"`
}

// DefaultWindowConfig 默认配置
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		WindowSize:  60 * time.Second,
		BucketCount: 60,
	}
}

type bucket struct {
	slot      int64 // 桶所属时间片编号
	count     int64
	totalTime float64
	min       float64
	max       float64
	okCount   int64
}

// Window 滑动窗口统计器，桶按时间片惰性轮转
type Window struct {
	config *WindowConfig
	width  time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets []bucket
}

// Option 窗口选项
type Option func(*Window)

// WithClock 替换时钟，用于测试
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// NewWindow 创建滑动窗口统计器
func NewWindow(cfg *WindowConfig, opts ...Option) (*Window, error) {
	newCfg, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge window config: %w", err)
	}
	if newCfg.BucketCount <= 0 || newCfg.WindowSize < time.Duration(newCfg.BucketCount) {
		return nil, fmt.Errorf("sliding: invalid window %s / %d buckets", newCfg.WindowSize, newCfg.BucketCount)
	}

	w := &Window{
		config:  newCfg,
		width:   newCfg.WindowSize / time.Duration(newCfg.BucketCount),
		now:     time.Now,
		buckets: make([]bucket, newCfg.BucketCount),
	}
	for _, opt := range opts {
		opt(w)
	}
	for i := range w.buckets {
		w.buckets[i].slot = -1
	}
	return w, nil
}

func (w *Window) slot(t time.Time) int64 {
	return t.UnixNano() / int64(w.width)
}

// Record 记录一次样本，ok=false 计为失败（例如 tick 超出预算）
func (w *Window) Record(value float64, ok bool) {
	s := w.slot(w.now())

	w.mu.Lock()
	defer w.mu.Unlock()

	b := &w.buckets[s%int64(len(w.buckets))]
	if b.slot != s {
		*b = bucket{slot: s, min: value, max: value}
	}
	b.count++
	b.totalTime += value
	if ok {
		b.okCount++
	}
	if value < b.min {
		b.min = value
	}
	if value > b.max {
		b.max = value
	}
}

// Stats 统计结果
type Stats struct {
	Rate        float64 `json:"rate"`         // 每秒样本数
	Avg         float64 `json:"avg"`          // 平均值
	Min         float64 `json:"min"`          // 最小值
	Max         float64 `json:"max"`          // 最大值
	SuccessRate float64 `json:"success_rate"` // 成功率 (0-100)
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
}

// GetStats 汇总窗口内的桶
func (w *Window) GetStats() Stats {
	cur := w.slot(w.now())
	oldest := cur - int64(len(w.buckets)) + 1

	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		st    Stats
		total float64
		ok    int64
		seen  bool
	)
	for _, b := range w.buckets {
		if b.slot < oldest || b.slot > cur || b.count == 0 {
			continue
		}
		st.Count += b.count
		total += b.totalTime
		ok += b.okCount
		if !seen || b.min < st.Min {
			st.Min = b.min
		}
		if !seen || b.max > st.Max {
			st.Max = b.max
		}
		seen = true
	}

	st.Rate = float64(st.Count) / w.config.WindowSize.Seconds()
	st.Failures = st.Count - ok
	if st.Count > 0 {
		st.Avg = total / float64(st.Count)
		st.SuccessRate = float64(ok) / float64(st.Count) * 100
	}
	return st
}
