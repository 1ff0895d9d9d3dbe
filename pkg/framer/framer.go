// Package framer 复制帧的编码和解码
//
// 帧格式（大端）:
//
//	magic(2) version(1) flags(1) op(4) seq(4) size(4) checksum(4) payload(size)
//
// flags 低 4 位为压缩算法编号，最高位表示 checksum 有效。
package framer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-combat/pkg/checksum"
	"github.com/lk2023060901/xdooria-combat/pkg/compress"
	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

const (
	Magic      uint16 = 0x5843
	Version    uint8  = 1
	HeaderSize        = 20

	flagCompressMask uint8 = 0x0f
	flagChecksum     uint8 = 0x80
)

var (
	ErrShortFrame   = errors.New("framer: frame shorter than header")
	ErrBadMagic     = errors.New("framer: bad magic")
	ErrBadVersion   = errors.New("framer: unsupported version")
	ErrSizeMismatch = errors.New("framer: payload size mismatch")
	ErrTooLarge     = errors.New("framer: payload too large")
	ErrChecksum     = errors.New("framer: checksum mismatch")
)

// Config 帧配置
type Config struct {
	// 压缩算法
	Compression compress.Type `mapstructure:"compression" json:"compression" validate:"omitempty,oneof=none snappy lz4 zstd"`

	// 校验算法
	Checksum checksum.Type `mapstructure:"checksum" json:"checksum" validate:"omitempty,oneof=none xxhash crc32c"`

	// 小于该字节数的负载不压缩
	MinCompressBytes int `mapstructure:"min_compress_bytes" json:"min_compress_bytes" validate:"gte=0"`

	// 单帧最大负载（解压后）
	MaxPayloadBytes int `mapstructure:"max_payload_bytes" json:"max_payload_bytes" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Compression:      compress.TypeSnappy,
		Checksum:         checksum.TypeXXHash,
		MinCompressBytes: 256,
		MaxPayloadBytes:  4 << 20,
	}
}

// Header 帧头
type Header struct {
	Op          uint32
	Seq         uint32
	Size        uint32
	Checksum    uint32
	Compression compress.Type
	HasChecksum bool
}

// Framer 帧编解码器，Encode 与 Decode 均可并发调用
type Framer struct {
	cfg        *Config
	compressor compress.Compressor
	hasher     checksum.Hasher
	seq        atomic.Uint32

	mu            sync.RWMutex
	decompressors map[compress.Type]compress.Compressor
}

// New 创建帧编解码器
func New(cfg *Config) (*Framer, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	c, err := compress.New(newCfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	h, err := checksum.New(newCfg.Checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to create hasher: %w", err)
	}

	return &Framer{
		cfg:           newCfg,
		compressor:    c,
		hasher:        h,
		decompressors: map[compress.Type]compress.Compressor{c.Type(): c},
	}, nil
}

// Encode 编码一帧，序号单调递增
func (f *Framer) Encode(op uint32, payload []byte) ([]byte, error) {
	if f.cfg.MaxPayloadBytes > 0 && len(payload) > f.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	body := payload
	var flags uint8
	if f.compressor.Type() != compress.TypeNone && len(payload) >= f.cfg.MinCompressBytes {
		compressed, err := f.compressor.Compress(payload)
		if err != nil {
			return nil, fmt.Errorf("compress failed: %w", err)
		}
		// 压缩后变大则原样发送
		if len(compressed) < len(payload) {
			body = compressed
			flags |= f.compressor.Type().ID() & flagCompressMask
		}
	}

	var sum uint32
	if checksum.Enabled(f.hasher) {
		sum = f.hasher.Sum(body)
		flags |= flagChecksum
	}

	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint16(frame[0:2], Magic)
	frame[2] = Version
	frame[3] = flags
	binary.BigEndian.PutUint32(frame[4:8], op)
	binary.BigEndian.PutUint32(frame[8:12], f.seq.Add(1))
	binary.BigEndian.PutUint32(frame[12:16], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[16:20], sum)
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// ParseHeader 解析帧头，不校验负载
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, ErrShortFrame
	}
	if binary.BigEndian.Uint16(frame[0:2]) != Magic {
		return Header{}, ErrBadMagic
	}
	if frame[2] != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, frame[2])
	}

	flags := frame[3]
	ct, err := compress.FromID(flags & flagCompressMask)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Op:          binary.BigEndian.Uint32(frame[4:8]),
		Seq:         binary.BigEndian.Uint32(frame[8:12]),
		Size:        binary.BigEndian.Uint32(frame[12:16]),
		Checksum:    binary.BigEndian.Uint32(frame[16:20]),
		Compression: ct,
		HasChecksum: flags&flagChecksum != 0,
	}, nil
}

// Decode 解码一帧并校验，返回解压后的负载
func (f *Framer) Decode(frame []byte) (Header, []byte, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return Header{}, nil, err
	}

	body := frame[HeaderSize:]
	if uint32(len(body)) != h.Size {
		return Header{}, nil, fmt.Errorf("%w: header %d, got %d", ErrSizeMismatch, h.Size, len(body))
	}

	// 两端校验算法须一致，本端未启用校验时跳过
	if h.HasChecksum && checksum.Enabled(f.hasher) && !f.hasher.Verify(body, h.Checksum) {
		return Header{}, nil, ErrChecksum
	}

	if h.Compression == compress.TypeNone {
		return h, body, nil
	}

	c, err := f.decompressor(h.Compression)
	if err != nil {
		return Header{}, nil, err
	}
	// 解压前按声明长度拒绝超限帧
	if f.cfg.MaxPayloadBytes > 0 {
		n, err := compress.DecodedLen(c, body)
		if err != nil {
			return Header{}, nil, fmt.Errorf("decompress failed: %w", err)
		}
		if n > f.cfg.MaxPayloadBytes {
			return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
		}
	}
	payload, err := c.Decompress(body)
	if err != nil {
		return Header{}, nil, fmt.Errorf("decompress failed: %w", err)
	}
	if f.cfg.MaxPayloadBytes > 0 && len(payload) > f.cfg.MaxPayloadBytes {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	return h, payload, nil
}

// Seq 最近一次编码使用的序号
func (f *Framer) Seq() uint32 {
	return f.seq.Load()
}

func (f *Framer) decompressor(t compress.Type) (compress.Compressor, error) {
	f.mu.RLock()
	c, ok := f.decompressors[t]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := compress.New(t)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.decompressors[t] = c
	f.mu.Unlock()
	return c, nil
}
