package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// newBufferLogger 创建输出到缓冲区的 JSON logger
func newBufferLogger(t *testing.T, level Level, opts ...Option) (*BaseLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, WithWriter(zapcore.AddSync(&buf)))
	l, err := New(&Config{Level: level, Format: JSONFormat, EnableConsole: false}, opts...)
	require.NoError(t, err)
	return l, &buf
}

// lines 解析缓冲区中的 JSON 日志行
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{"nil config uses default", nil, nil},
		{"json console", &Config{Level: InfoLevel, Format: JSONFormat, EnableConsole: true}, nil},
		{"file without path", &Config{EnableFile: true}, ErrInvalidOutputPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoOutputEnabled)
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoggerLevels(t *testing.T) {
	l, buf := newBufferLogger(t, WarnLevel)
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn", "agent", "wolf")
	l.Error("error")

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0]["msg"])
	assert.Equal(t, "wolf", got[0]["agent"])
	assert.Equal(t, "error", got[1]["level"])
}

func TestLoggerNamedAndFields(t *testing.T) {
	l, buf := newBufferLogger(t, DebugLevel)
	l.Named("zone").WithFields("zone", "z1").Info("tick", "agents", 3)

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "zone", got[0]["logger"])
	assert.Equal(t, "z1", got[0]["zone"])
	assert.EqualValues(t, 3, got[0]["agents"])
}

func TestLoggerContextFields(t *testing.T) {
	l, buf := newBufferLogger(t, DebugLevel)
	ctx := WithContextFields(context.Background(), "tick", 42)
	l.InfoContext(ctx, "stepped")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.EqualValues(t, 42, got[0]["tick"])
}

func TestOddKeyValues(t *testing.T) {
	l, buf := newBufferLogger(t, DebugLevel)
	l.Info("odd", "a", 1, "dangling")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0]["a"])
	assert.NotContains(t, got[0], "dangling")
}

func TestHooks(t *testing.T) {
	counts := map[string]int{}
	drop := HookFunc(func(e zapcore.Entry, _ []zapcore.Field) bool {
		return e.Message != "secret"
	})
	l, buf := newBufferLogger(t, DebugLevel,
		WithHooks(LevelCounterHook(zapcore.WarnLevel, func(level string) { counts[level]++ }), drop))

	l.Info("hello")
	l.Warn("careful")
	l.Error("secret")

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, 1, counts["warn"])
	assert.Equal(t, 1, counts["error"])
}

func TestRotationWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotationWriter(&RotationConfig{Type: RotationBySize, MaxSize: 1}, filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	_, err = w.Write([]byte("x\n"))
	require.NoError(t, err)

	w, err = NewRotationWriter(&RotationConfig{Type: RotationByTime, RotationTime: "bad"}, filepath.Join(dir, "b.log"))
	require.NoError(t, err)
	_, err = w.Write([]byte("y\n"))
	require.NoError(t, err)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoop()
	l.Info("nothing")
	assert.Same(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestDefault(t *testing.T) {
	n := NewNoop()
	SetDefault(n)
	defer SetDefault(nil)
	assert.Same(t, Logger(n), Default())
}
