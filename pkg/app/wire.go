package app

import (
	"github.com/google/wire"
)

// Components wire 收集到的服务与资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// ProviderSet 导出给 wire 使用
var ProviderSet = wire.NewSet(
	NewBaseApp,
)

// Assemble 将组件挂到应用上
func Assemble(app *BaseApp, comps Components) *BaseApp {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}

// CloserFunc 函数式 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}
