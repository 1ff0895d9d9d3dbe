package compress

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnsupported = errors.New("compress: unsupported algorithm")

// Compressor 压缩器，实现需要并发安全
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Type() Type
}

// Sizer 解压前读取原始长度，数据未携带长度时返回 -1
type Sizer interface {
	DecodedLen(src []byte) (int, error)
}

// DecodedLen 读取压缩数据的原始长度，算法不支持时返回 -1
func DecodedLen(c Compressor, src []byte) (int, error) {
	if s, ok := c.(Sizer); ok {
		return s.DecodedLen(src)
	}
	return -1, nil
}

// Type 压缩算法
type Type string

const (
	TypeNone   Type = "none"
	TypeSnappy Type = "snappy"
	TypeLZ4    Type = "lz4"
	TypeZstd   Type = "zstd"
)

// wireIDs 帧头中的算法编号，发布后不得修改
var wireIDs = map[Type]uint8{
	TypeNone:   0,
	TypeSnappy: 1,
	TypeLZ4:    2,
	TypeZstd:   3,
}

// ID 帧头编号
func (t Type) ID() uint8 {
	return wireIDs[t]
}

// FromID 由帧头编号解析算法
func FromID(id uint8) (Type, error) {
	for t, v := range wireIDs {
		if v == id {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: id %d", ErrUnsupported, id)
}

// Factory 压缩器构造函数
type Factory func() (Compressor, error)

var (
	mu        sync.RWMutex
	factories = map[Type]Factory{
		TypeNone:   func() (Compressor, error) { return none{}, nil },
		TypeSnappy: func() (Compressor, error) { return snappyCompressor{}, nil },
		TypeLZ4:    func() (Compressor, error) { return lz4Compressor{}, nil },
		TypeZstd:   func() (Compressor, error) { return newZstd() },
	}
)

// Register 注册或替换压缩器
func Register(t Type, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[t] = f
}

// New 创建压缩器，空字符串等同于 none
func New(t Type) (Compressor, error) {
	if t == "" {
		t = TypeNone
	}
	mu.RLock()
	f, ok := factories[t]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
	return f()
}

type none struct{}

func (none) Compress(src []byte) ([]byte, error)   { return src, nil }
func (none) Decompress(src []byte) ([]byte, error) { return src, nil }
func (none) Type() Type                            { return TypeNone }
func (none) DecodedLen(src []byte) (int, error)    { return len(src), nil }
