package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取字段
type ContextFieldExtractor func(ctx context.Context) []zap.Field

type ctxKey struct{}

// WithContextFields 将字段挂到 context 上，配合 FieldsFromContext 使用
func WithContextFields(ctx context.Context, keysAndValues ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]zap.Field)
	fields := append(append([]zap.Field(nil), prev...), toZapFields(keysAndValues)...)
	return context.WithValue(ctx, ctxKey{}, fields)
}

// FieldsFromContext 默认提取器，读取 WithContextFields 写入的字段
func FieldsFromContext(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}
