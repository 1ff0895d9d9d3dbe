package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/logger"
)

type fakeServer struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	startErr error
	stopWait time.Duration
}

func (s *fakeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return s.startErr
}

func (s *fakeServer) Stop() error {
	time.Sleep(s.stopWait)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeServer) state() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}

func newTestApp(opts ...Option) *BaseApp {
	return NewBaseApp(append([]Option{WithLogger(logger.NewNoop()), WithName("test")}, opts...)...)
}

func TestBaseApp_RunAndShutdown(t *testing.T) {
	a := newTestApp()
	s1, s2 := &fakeServer{}, &fakeServer{}

	var order []int
	a.AppendServer(s1, s2)
	a.AppendCloser(
		CloserFunc(func() error { order = append(order, 1); return nil }),
		CloserFunc(func() error { order = append(order, 2); return errors.New("ignored") }),
	)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = a.Shutdown()
	}()

	require.NoError(t, a.Run())
	for _, s := range []*fakeServer{s1, s2} {
		started, stopped := s.state()
		assert.True(t, started)
		assert.True(t, stopped)
	}
	assert.Equal(t, []int{2, 1}, order)
	assert.Error(t, a.Context().Err())

	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)
	assert.NoError(t, a.Shutdown())
}

func TestBaseApp_StartFailure(t *testing.T) {
	a := newTestApp()
	boom := errors.New("boom")
	ok := &fakeServer{}
	a.AppendServer(ok, &fakeServer{startErr: boom})

	assert.ErrorIs(t, a.Run(), boom)
	_, stopped := ok.state()
	assert.True(t, stopped)
}

func TestBaseApp_StopTimeout(t *testing.T) {
	a := newTestApp(WithStopTimeout(10 * time.Millisecond))
	a.AppendServer(&fakeServer{stopWait: 200 * time.Millisecond})
	for _, s := range a.servers {
		require.NoError(t, s.Start())
	}
	assert.ErrorIs(t, a.Shutdown(), ErrStopTimeout)
}

func TestBaseApp_Logger(t *testing.T) {
	a := newTestApp(WithID("node-1"))
	assert.Equal(t, "node-1", a.ID())
	assert.NotNil(t, a.Logger("zone"))

	named := logger.NewNoop()
	a.registry.Register("zone", named)
	assert.Same(t, named, a.Logger("zone"))
}
