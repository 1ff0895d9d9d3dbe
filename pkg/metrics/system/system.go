// Package system 进程资源采集（gopsutil），供状态接口和 Prometheus 使用
package system

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Collector 系统指标收集器
type Collector struct {
	proc *process.Process

	mu    sync.RWMutex
	stats Stats
}

// Stats 系统统计数据
type Stats struct {
	// 进程 CPU 使用率 (0-100*核数)
	CPUPercent float64 `json:"cpu_percent"`
	// 进程内存占系统内存比例 (0-100)
	MemoryPercent float64 `json:"memory_percent"`
	// 进程 RSS 字节数
	MemoryBytes uint64 `json:"memory_bytes"`
	// 系统整体 CPU 使用率
	SystemCPUPercent float64 `json:"system_cpu_percent"`
	// Goroutine 数量
	Goroutines int `json:"goroutines"`
	// 更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// New 创建系统指标收集器
func New() (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Collector{proc: proc}, nil
}

// Run 立即采集一次，之后按 interval 周期采集，阻塞直到 ctx 结束
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	c.Collect()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-ctx.Done():
			return
		}
	}
}

// Collect 执行一次采集，单项失败时保留零值
func (c *Collector) Collect() {
	var stats Stats

	if pct, err := c.proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	}
	if info, err := c.proc.MemoryInfo(); err == nil {
		stats.MemoryBytes = info.RSS
		if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
			stats.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
		}
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		stats.SystemCPUPercent = pcts[0]
	}
	stats.Goroutines = runtime.NumGoroutine()
	stats.UpdatedAt = time.Now()

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// GetStats 获取最近一次统计数据
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Register 以 GaugeFunc 形式注册到 Prometheus，读取最近一次采集结果
func (c *Collector) Register(reg prometheus.Registerer, namespace string) error {
	gauges := []struct {
		name string
		help string
		fn   func(Stats) float64
	}{
		{"process_cpu_percent", "Process CPU usage percent.", func(s Stats) float64 { return s.CPUPercent }},
		{"process_memory_percent", "Process RSS as percent of system memory.", func(s Stats) float64 { return s.MemoryPercent }},
		{"system_cpu_percent", "System-wide CPU usage percent.", func(s Stats) float64 { return s.SystemCPUPercent }},
	}
	for _, g := range gauges {
		fn := g.fn
		gf := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		}, func() float64 { return fn(c.GetStats()) })
		if err := reg.Register(gf); err != nil {
			return err
		}
	}
	return nil
}
