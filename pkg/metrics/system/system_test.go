package system

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.Collect()
	st := c.GetStats()
	assert.Positive(t, st.Goroutines)
	assert.Positive(t, st.MemoryBytes)
	assert.False(t, st.UpdatedAt.IsZero())

	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg, "combat"))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCollector_Run(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !c.GetStats().UpdatedAt.IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
