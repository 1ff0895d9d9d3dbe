package signal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/mq/kafka"
	"github.com/lk2023060901/xdooria-combat/pkg/serializer"
)

// Publisher Kafka 生产者接口
type Publisher interface {
	Publish(ctx context.Context, msgs ...*kafka.Message) error
}

// ExporterConfig Kafka 导出配置
type ExporterConfig struct {
	// QueueSize 待导出批次队列长度，满了以后丢弃
	QueueSize int `mapstructure:"queue_size" json:"queue_size" validate:"gte=0"`
	// PublishTimeout 单批发布超时
	PublishTimeout time.Duration `mapstructure:"publish_timeout" json:"publish_timeout"`
	// Names 只导出这些信号，空表示全部
	Names []string `mapstructure:"names" json:"names"`
}

// DefaultExporterConfig 默认配置
func DefaultExporterConfig() *ExporterConfig {
	return &ExporterConfig{
		QueueSize:      256,
		PublishTimeout: 5 * time.Second,
	}
}

// Exporter 异步把信号以 JSON 写入 Kafka，key 为 zone/net_id 以保证同一 Agent 有序
type Exporter struct {
	config    *ExporterConfig
	publisher Publisher
	codec     serializer.Serializer
	logger    logger.Logger
	names     map[string]struct{}

	queue   chan []*kafka.Message
	dropped atomic.Int64

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewExporter 创建导出器
func NewExporter(cfg *ExporterConfig, p Publisher, l logger.Logger) (*Exporter, error) {
	newCfg, err := config.MergeConfig(DefaultExporterConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge exporter config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, err
	}

	e := &Exporter{
		config:    newCfg,
		publisher: p,
		codec:     serializer.JSON{},
		logger:    l.Named("signal.kafka"),
		queue:     make(chan []*kafka.Message, newCfg.QueueSize),
	}
	if len(newCfg.Names) > 0 {
		e.names = make(map[string]struct{}, len(newCfg.Names))
		for _, n := range newCfg.Names {
			e.names[n] = struct{}{}
		}
	}
	return e, nil
}

// Publish 编码后入队，不阻塞 zone 步进
func (e *Exporter) Publish(events []Event) {
	msgs := make([]*kafka.Message, 0, len(events))
	for _, ev := range events {
		if e.names != nil {
			if _, ok := e.names[ev.Name]; !ok {
				continue
			}
		}
		value, err := e.codec.Serialize(ev)
		if err != nil {
			e.logger.Warn("failed to encode signal", "signal", ev.Name, "error", err)
			continue
		}
		msgs = append(msgs, &kafka.Message{
			Key:   []byte(ev.Zone + "/" + strconv.FormatUint(ev.NetID, 10)),
			Value: value,
			Headers: map[string]string{
				"signal":       ev.Name,
				"content-type": e.codec.ContentType(),
			},
			Time: time.Now(),
		})
	}
	if len(msgs) == 0 {
		return
	}

	select {
	case e.queue <- msgs:
	default:
		if e.dropped.Add(int64(len(msgs))) == int64(len(msgs)) {
			e.logger.Warn("signal export queue full, dropping")
		}
	}
}

// Dropped 因队列满丢弃的消息数
func (e *Exporter) Dropped() int64 {
	return e.dropped.Load()
}

// Start 启动发送协程
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.running = true
	e.done = make(chan struct{})
	go e.run(e.done)
	return nil
}

func (e *Exporter) run(done chan struct{}) {
	for batch := range e.queue {
		if batch == nil {
			close(done)
			return
		}
		e.flush(batch)
	}
}

func (e *Exporter) flush(batch []*kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.PublishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, batch...); err != nil {
		e.logger.Warn("signal export failed", "count", len(batch), "error", err)
	}
}

// Stop 发送完已入队的批次后返回
func (e *Exporter) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	done := e.done
	e.mu.Unlock()

	e.queue <- nil
	<-done
	return nil
}

var _ Sink = (*Exporter)(nil)
