package logger

import "go.uber.org/zap/zapcore"

// Option 创建选项
type Option func(*BaseLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *BaseLogger) {
		l.name = name
	}
}

// WithHooks 添加钩子
func WithHooks(hooks ...Hook) Option {
	return func(l *BaseLogger) {
		l.hooks = append(l.hooks, hooks...)
	}
}

// WithWriter 追加输出目标（测试中用于捕获日志）
func WithWriter(w zapcore.WriteSyncer) Option {
	return func(l *BaseLogger) {
		l.extra = append(l.extra, w)
	}
}

// WithContextExtractor 设置 context 字段提取器
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *BaseLogger) {
		if fn != nil {
			l.extractor = fn
		}
	}
}
