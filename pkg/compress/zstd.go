package compress

import (
	"math"

	"github.com/klauspost/compress/zstd"
)

// zstdMaxMemory 单次解压的内存上限
const zstdMaxMemory = 64 << 20

// zstdCompressor EncodeAll/DecodeAll 可以并发调用
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(zstdMaxMemory))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

func (c *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, nil)
}

// DecodedLen 读取帧头中的内容长度，EncodeAll 产生的帧总是携带
func (c *zstdCompressor) DecodedLen(src []byte) (int, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, err
	}
	if !h.HasFCS {
		return -1, nil
	}
	if h.FrameContentSize > uint64(math.MaxInt32) {
		return math.MaxInt32, nil
	}
	return int(h.FrameContentSize), nil
}

func (c *zstdCompressor) Type() Type {
	return TypeZstd
}
