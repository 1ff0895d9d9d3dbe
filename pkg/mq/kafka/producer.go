package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

// Message 待发送消息
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// ProducerStats 生产者统计
type ProducerStats struct {
	MessagesProduced  int64 `json:"messages_produced"`
	MessagesSucceeded int64 `json:"messages_succeeded"`
	MessagesFailed    int64 `json:"messages_failed"`
}

// Writer kafka.Writer 的最小接口，测试中替换
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option 生产者选项
type Option func(*Producer)

// WithWriter 替换底层 writer
func WithWriter(w Writer) Option {
	return func(p *Producer) {
		p.writer = w
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(p *Producer) {
		p.logger = l
	}
}

// Producer Kafka 生产者
type Producer struct {
	config *Config
	writer Writer
	logger logger.Logger

	produced  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	closed    atomic.Bool
}

// NewProducer 创建生产者
func NewProducer(cfg *Config, opts ...Option) (*Producer, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	p := &Producer{
		config: newCfg,
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("kafka.producer").WithFields("topic", newCfg.Topic)

	if p.writer == nil {
		w, err := p.newWriter()
		if err != nil {
			return nil, err
		}
		p.writer = w
	}
	return p, nil
}

func (p *Producer) newWriter() (*kafka.Writer, error) {
	cfg := p.config
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		MaxAttempts:            cfg.MaxRetries + 1,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Async:                  cfg.Async,
		Compression:            parseCompression(cfg.Compression),
		AllowAutoTopicCreation: true,
	}
	if cfg.Async {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				p.failed.Add(int64(len(msgs)))
				p.logger.Warn("async publish failed", "count", len(msgs), "error", err)
				return
			}
			p.succeeded.Add(int64(len(msgs)))
		}
	}

	if cfg.TLS != nil || cfg.SASL != nil {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		w.Transport = transport
	}
	return w, nil
}

// Publish 发布消息，同 Key 的消息进入同一分区
func (p *Producer) Publish(ctx context.Context, msgs ...*Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}

	out := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = kafka.Message{Key: msg.Key, Value: msg.Value, Time: msg.Time}
		for k, v := range msg.Headers {
			out[i].Headers = append(out[i].Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	p.produced.Add(int64(len(msgs)))
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		p.failed.Add(int64(len(msgs)))
		return err
	}
	if !p.config.Async {
		p.succeeded.Add(int64(len(msgs)))
	}
	return nil
}

// Topic 返回 topic 名称
func (p *Producer) Topic() string {
	return p.config.Topic
}

// Stats 返回统计信息
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesProduced:  p.produced.Load(),
		MessagesSucceeded: p.succeeded.Load(),
		MessagesFailed:    p.failed.Load(),
	}
}

// Close 关闭生产者，等待异步批次发送完成
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.logger.Debug("producer closing")
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
