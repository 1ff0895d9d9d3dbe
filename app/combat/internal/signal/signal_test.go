package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/ability"
	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/logger"
	"github.com/lk2023060901/xdooria-combat/pkg/mq/kafka"
)

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []*kafka.Message
	err   error
	block chan struct{}
}

func (p *fakePublisher) Publish(_ context.Context, msgs ...*kafka.Message) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return p.err
}

func (p *fakePublisher) sent() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.msgs...)
}

type observerFunc func(ability.Signal)

func (f observerFunc) ObserveSignal(s ability.Signal) { f(s) }

func events() []Event {
	return []Event{
		{Zone: "arena", Tick: 7, NetID: 42, Signal: ability.Signal{
			Agent: entity.Handle{Index: 1, Gen: 1}, Ability: "bite", Name: ability.SignalWindupStarted,
			Phase: ability.PhaseWindup, At: 700 * time.Millisecond,
		}},
		{Zone: "arena", Tick: 7, NetID: 43, Signal: ability.Signal{
			Agent: entity.Handle{Index: 2, Gen: 1}, Ability: "pounce", Name: ability.SignalAborted,
		}},
	}
}

func TestFanout(t *testing.T) {
	var got []string
	var batches int
	f := Fanout{
		SinkFunc(func(evs []Event) { batches++ }),
		NewMetricsSink(observerFunc(func(s ability.Signal) { got = append(got, s.Name) })),
		NewLogSink(logger.NewNoop()),
	}

	f.Publish(nil)
	assert.Zero(t, batches)

	f.Publish(events())
	assert.Equal(t, 1, batches)
	assert.Equal(t, []string{ability.SignalWindupStarted, ability.SignalAborted}, got)
}

func TestExporterPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	e, err := NewExporter(nil, pub, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, e.Start())

	e.Publish(events())
	require.NoError(t, e.Stop())

	msgs := pub.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "arena/42", string(msgs[0].Key))
	assert.Equal(t, ability.SignalWindupStarted, msgs[0].Headers["signal"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, "arena", decoded["zone"])
	assert.Equal(t, "bite", decoded["ability"])
	assert.EqualValues(t, 42, decoded["net_id"])
	assert.EqualValues(t, 7, decoded["tick"])
}

func TestExporterFiltersNames(t *testing.T) {
	pub := &fakePublisher{}
	e, err := NewExporter(&ExporterConfig{Names: []string{ability.SignalAborted}}, pub, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, e.Start())

	e.Publish(events())
	require.NoError(t, e.Stop())

	msgs := pub.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "arena/43", string(msgs[0].Key))
}

func TestExporterDropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	e, err := NewExporter(&ExporterConfig{QueueSize: 1}, pub, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, e.Start())

	// 第一批被发送协程取走并阻塞，第二批占满队列，第三批丢弃
	e.Publish(events())
	require.Eventually(t, func() bool { return len(e.queue) == 0 }, time.Second, time.Millisecond)
	e.Publish(events())
	e.Publish(events())
	assert.EqualValues(t, 2, e.Dropped())

	close(pub.block)
	require.NoError(t, e.Stop())
	assert.Len(t, pub.sent(), 4)
}

func TestExporterLogsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	e, err := NewExporter(nil, pub, logger.NewNoop())
	require.NoError(t, err)
	require.NoError(t, e.Start())
	e.Publish(events())
	require.NoError(t, e.Stop())
	assert.Len(t, pub.sent(), 2)
}
