// Package signal 表现信号的分发：日志、指标与 Kafka 导出
//
// zone 在每次步进结束后把本帧收集到的信号整批交给 Sink，
// 同一批信号也随下一帧快照复制给观察者。
package signal

import (
	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Event 带 zone 上下文的表现信号
type Event struct {
	Zone  string `json:"zone" codec:"zone"`
	Tick  uint64 `json:"tick" codec:"tick"`
	NetID uint64 `json:"net_id" codec:"net_id"`

	ability.Signal
}

// Sink 接收一帧内的全部信号，不得持有 events 切片
type Sink interface {
	Publish(events []Event)
}

// SinkFunc 函数式 Sink
type SinkFunc func(events []Event)

func (f SinkFunc) Publish(events []Event) {
	f(events)
}

// Fanout 多路分发
type Fanout []Sink

func (f Fanout) Publish(events []Event) {
	if len(events) == 0 {
		return
	}
	for _, s := range f {
		s.Publish(events)
	}
}

// LogSink 以 debug 级别记录每条信号
type LogSink struct {
	logger logger.Logger
}

// NewLogSink 创建日志 Sink
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{logger: l.Named("signal")}
}

func (s *LogSink) Publish(events []Event) {
	for _, e := range events {
		s.logger.Debug("combat signal",
			"zone", e.Zone,
			"tick", e.Tick,
			"net_id", e.NetID,
			"signal", e.Name,
			"ability", e.Ability,
			"phase", e.Phase.String(),
			"detail", e.Detail,
		)
	}
}

// Observer 指标侧接口
type Observer interface {
	ObserveSignal(s ability.Signal)
}

// MetricsSink 把信号转成指标
type MetricsSink struct {
	observer Observer
}

// NewMetricsSink 创建指标 Sink
func NewMetricsSink(o Observer) *MetricsSink {
	return &MetricsSink{observer: o}
}

func (s *MetricsSink) Publish(events []Event) {
	for _, e := range events {
		s.observer.ObserveSignal(e.Signal)
	}
}
