package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher 监听目录内匹配 pattern 的文件变化，debounce 内的多次变化合并为一次回调
type DirWatcher struct {
	w        *fsnotify.Watcher
	dir      string
	pattern  string
	debounce time.Duration
}

// NewDirWatcher 创建监听器并注册目录，返回后的变更都会被观察到
func NewDirWatcher(dir, pattern string, debounce time.Duration) (*DirWatcher, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &DirWatcher{w: w, dir: dir, pattern: pattern, debounce: debounce}, nil
}

// Dir 监听的目录
func (d *DirWatcher) Dir() string {
	return d.dir
}

// Close 关闭监听器，Run 随之返回
func (d *DirWatcher) Close() error {
	return d.w.Close()
}

// Run 处理事件，阻塞直到 ctx 结束或监听器关闭，返回前关闭监听器
func (d *DirWatcher) Run(ctx context.Context, onChange func(names []string), onError func(error)) error {
	defer d.w.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-d.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if matched, _ := filepath.Match(d.pattern, filepath.Base(ev.Name)); !matched {
				continue
			}
			pending[filepath.Base(ev.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(d.debounce)
			} else {
				timer.Reset(d.debounce)
			}
			fire = timer.C

		case err, ok := <-d.w.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}

		case <-fire:
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			clear(pending)
			fire = nil
			onChange(names)
		}
	}
}
