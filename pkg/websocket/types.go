package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType int

const (
	// MessageTypeText 文本消息
	MessageTypeText MessageType = websocket.TextMessage
	// MessageTypeBinary 二进制消息
	MessageTypeBinary MessageType = websocket.BinaryMessage
)

// String 返回消息类型的字符串表示
func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "text"
	case MessageTypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Message 一条完整的 websocket 消息
type Message struct {
	Type MessageType
	Data []byte
}

// NewBinaryMessage 创建二进制消息
func NewBinaryMessage(data []byte) *Message {
	return &Message{Type: MessageTypeBinary, Data: data}
}

// NewTextMessage 创建文本消息
func NewTextMessage(data []byte) *Message {
	return &Message{Type: MessageTypeText, Data: data}
}

// Stats 统计信息
type Stats struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	MessagesSent      int64 `json:"messages_sent"`
	BytesSent         int64 `json:"bytes_sent"`
	Dropped           int64 `json:"dropped"`
}

// ConnectionInfo 连接信息
type ConnectionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}
