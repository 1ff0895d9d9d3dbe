package serializer

import (
	"encoding/json"
	"fmt"
)

// Serializer 序列化器
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
	ContentType() string
}

// JSON JSON 序列化器，用于 kafka 导出与管理接口
type JSON struct{}

func (JSON) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) ContentType() string {
	return "application/json"
}

// Msgpack msgpack 序列化器，用于复制快照
type Msgpack struct{}

func (Msgpack) Serialize(v any) ([]byte, error) {
	return Encode(v)
}

func (Msgpack) Deserialize(data []byte, v any) error {
	return Decode(data, v)
}

func (Msgpack) ContentType() string {
	return "application/msgpack"
}

// ByName 按名称选择序列化器
func ByName(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("serializer: unknown format %q", name)
	}
}
