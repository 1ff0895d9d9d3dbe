// Package conc 基于 ants 的泛型协程池
package conc

import (
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Future 异步任务结果
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Await 等待任务完成
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// Done 任务完成通知
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Pool 协程池，任务 panic 会被转换为错误
type Pool[T any] struct {
	inner *ants.Pool
}

// NewPool 创建协程池，size <= 0 时使用 CPU 核数
func NewPool[T any](size int, opts ...ants.Option) (*Pool[T], error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, fmt.Errorf("conc: create pool: %w", err)
	}
	return &Pool[T]{inner: p}, nil
}

// NewDefaultPool 创建默认大小的协程池
func NewDefaultPool[T any]() *Pool[T] {
	p, err := NewPool[T](0)
	if err != nil {
		panic(err)
	}
	return p
}

// Submit 提交任务，池已关闭时 Future 直接返回错误
func (p *Pool[T]) Submit(fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	err := p.inner.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("conc: task panic: %v", r)
			}
		}()
		f.value, f.err = fn()
	})
	if err != nil {
		f.err = fmt.Errorf("conc: submit: %w", err)
		close(f.done)
	}
	return f
}

// Running 正在运行的任务数
func (p *Pool[T]) Running() int {
	return p.inner.Running()
}

// Cap 池容量
func (p *Pool[T]) Cap() int {
	return p.inner.Cap()
}

// Release 关闭协程池
func (p *Pool[T]) Release() {
	p.inner.Release()
}

// AwaitAll 等待全部任务，返回第一个错误
func AwaitAll[T any](futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	var first error
	for i, f := range futures {
		v, err := f.Await()
		out[i] = v
		if err != nil && first == nil {
			first = err
		}
	}
	return out, first
}

// ForEach 在池中并行处理 items，等待全部完成
func ForEach[E any](p *Pool[struct{}], items []E, fn func(E) error) error {
	futures := make([]*Future[struct{}], 0, len(items))
	for _, it := range items {
		futures = append(futures, p.Submit(func() (struct{}, error) {
			return struct{}{}, fn(it)
		}))
	}
	_, err := AwaitAll(futures...)
	return err
}
