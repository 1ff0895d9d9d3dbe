package websocket

import "errors"

var (
	// 配置错误
	ErrInvalidConfig = errors.New("websocket: invalid config")
	ErrInvalidURL    = errors.New("websocket: invalid url")

	// 连接错误
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrAlreadyConnected = errors.New("websocket: already connected")

	// 发送错误
	ErrSendQueueFull = errors.New("websocket: send queue full")

	// 服务端错误
	ErrServerFull   = errors.New("websocket: too many connections")
	ErrServerClosed = errors.New("websocket: server closed")
)
