package bt

import (
	"context"
	"testing"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted 按脚本依次返回状态的测试节点
type scripted struct {
	BaseNode
	script []Status
	ticks  int
	resets int
}

func newScripted(name string, script ...Status) *scripted {
	return &scripted{BaseNode: NewBaseNode(name), script: script}
}

func (s *scripted) Tick(context.Context, *Blackboard) Status {
	st := s.script[min(s.ticks, len(s.script)-1)]
	s.ticks++
	return st
}

func (s *scripted) Reset() {
	s.resets++
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Success", StatusSuccess.String())
	assert.Equal(t, "Failure", StatusFailure.String())
	assert.Equal(t, "Running", StatusRunning.String())
	assert.Equal(t, "Invalid", StatusInvalid.String())
}

func TestSequence(t *testing.T) {
	tests := []struct {
		name     string
		children []Status
		want     Status
	}{
		{"all success", []Status{StatusSuccess, StatusSuccess}, StatusSuccess},
		{"first fails", []Status{StatusFailure, StatusSuccess}, StatusFailure},
		{"second running", []Status{StatusSuccess, StatusRunning}, StatusRunning},
		{"empty", nil, StatusSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := make([]Node, 0, len(tt.children))
			for i, st := range tt.children {
				nodes = append(nodes, newScripted(string(rune('a'+i)), st))
			}
			seq := NewSequence("seq", nodes...)
			assert.Equal(t, tt.want, seq.Tick(context.Background(), NewBlackboard()))
		})
	}
}

func TestSequenceResumesAtRunningChild(t *testing.T) {
	first := newScripted("first", StatusSuccess)
	second := newScripted("second", StatusRunning, StatusRunning, StatusSuccess)
	seq := NewSequence("seq", first, second)
	bb := NewBlackboard()

	assert.Equal(t, StatusRunning, seq.Tick(context.Background(), bb))
	assert.Equal(t, StatusRunning, seq.Tick(context.Background(), bb))
	assert.Equal(t, StatusSuccess, seq.Tick(context.Background(), bb))

	// first 只在第一次激活时执行
	assert.Equal(t, 1, first.ticks)
	assert.Equal(t, 3, second.ticks)

	// 完成后游标归零，新一轮从头开始
	seq.Tick(context.Background(), bb)
	assert.Equal(t, 2, first.ticks)
}

func TestSelectorPriority(t *testing.T) {
	high := newScripted("high", StatusFailure)
	low := newScripted("low", StatusSuccess)
	sel := NewSelector("sel", high, low)

	assert.Equal(t, StatusSuccess, sel.Tick(context.Background(), NewBlackboard()))
	assert.Equal(t, 1, high.ticks)
	assert.Equal(t, 1, low.ticks)
}

func TestSelectorAllFail(t *testing.T) {
	sel := NewSelector("sel", newScripted("a", StatusFailure), newScripted("b", StatusFailure))
	assert.Equal(t, StatusFailure, sel.Tick(context.Background(), NewBlackboard()))
}

func TestSelectorPreemptsRunningBranch(t *testing.T) {
	high := newScripted("high", StatusFailure, StatusSuccess)
	low := newScripted("low", StatusRunning)
	sel := NewSelector("sel", high, low)
	bb := NewBlackboard()

	require.Equal(t, StatusRunning, sel.Tick(context.Background(), bb))

	// 高优先级分支变为可用，低优先级 Running 分支被中断
	require.Equal(t, StatusSuccess, sel.Tick(context.Background(), bb))
	assert.Equal(t, 1, low.resets)
	assert.Equal(t, 1, low.ticks)
}

func TestSelectorReevaluatesFromFirstChild(t *testing.T) {
	high := newScripted("high", StatusFailure)
	low := newScripted("low", StatusRunning)
	sel := NewSelector("sel", high, low)
	bb := NewBlackboard()

	for i := 0; i < 3; i++ {
		sel.Tick(context.Background(), bb)
	}
	assert.Equal(t, 3, high.ticks)
	assert.Equal(t, 0, low.resets)
}

func TestActionHooks(t *testing.T) {
	var starts, stops int
	var lastStop Status
	calls := 0
	act := NewAction("act",
		func(context.Context, *Blackboard) Status {
			calls++
			if calls < 3 {
				return StatusRunning
			}
			return StatusSuccess
		},
		WithOnStart(func(*Blackboard) { starts++ }),
		WithOnStop(func(_ *Blackboard, st Status) {
			stops++
			lastStop = st
		}),
	)
	bb := NewBlackboard()

	act.Tick(context.Background(), bb)
	act.Tick(context.Background(), bb)
	act.Tick(context.Background(), bb)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StatusSuccess, lastStop)

	// 中断时 OnStop 收到 StatusInvalid
	calls = 0
	act.Tick(context.Background(), bb)
	act.Reset()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
	assert.Equal(t, StatusInvalid, lastStop)

	// 未激活时 Reset 不触发回调
	act.Reset()
	assert.Equal(t, 2, stops)
}

func TestSequenceResetInterruptsCurrentChild(t *testing.T) {
	stopped := false
	act := NewAction("run", func(context.Context, *Blackboard) Status { return StatusRunning },
		WithOnStop(func(*Blackboard, Status) { stopped = true }))
	seq := NewSequence("seq", NewCondition("ok", func(*Blackboard) bool { return true }), act)

	require.Equal(t, StatusRunning, seq.Tick(context.Background(), NewBlackboard()))
	seq.Reset()
	assert.True(t, stopped)
}

func TestBlackboardTarget(t *testing.T) {
	bb := NewBlackboard()
	h := entity.Handle{Index: 3, Gen: 1}

	_, ok := bb.Target(nil)
	assert.False(t, ok)

	bb.SetTarget(h)
	bb.Set(KeyTargetDist, 4.0)
	got, ok := bb.Target(func(entity.Handle) bool { return true })
	require.True(t, ok)
	assert.Equal(t, h, got)

	// 目标失效后读取会清除键
	_, ok = bb.Target(func(entity.Handle) bool { return false })
	assert.False(t, ok)
	assert.False(t, bb.Has(KeyTarget))
	assert.False(t, bb.Has(KeyTargetDist))

	bb.SetTarget(h)
	bb.SetTarget(entity.Nil)
	assert.False(t, bb.Has(KeyTarget))
}

func TestBlackboardTypedGetters(t *testing.T) {
	bb := NewBlackboard()
	bb.Set("s", "x")
	bb.Set("i", 2)
	bb.Set("f", 1.5)
	bb.Set("b", true)

	s, ok := bb.GetString("s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = bb.GetInt("s")
	assert.False(t, ok)

	f, _ := bb.GetFloat64("f")
	assert.Equal(t, 1.5, f)

	b, _ := bb.GetBool("b")
	assert.True(t, b)

	bb.Clear()
	assert.False(t, bb.Has("i"))
}

func TestTreeTick(t *testing.T) {
	root := NewSelector("root", newScripted("a", StatusRunning))
	tree := NewTree(root, nil, nil)
	assert.Equal(t, StatusRunning, tree.Tick(context.Background()))
	assert.NotNil(t, tree.GetBlackboard())
	tree.Reset()
}
