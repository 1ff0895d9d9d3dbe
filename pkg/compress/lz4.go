package compress

import (
	"encoding/binary"
	"errors"

	"github.com/pierrec/lz4/v4"
)

var errCorruptLZ4 = errors.New("compress: corrupt lz4 block")

// lz4Compressor 块格式：4 字节原始长度 + 1 字节标记 + 数据
// 不可压缩的数据以标记 0 原样保存
type lz4Compressor struct{}

const lz4HeaderSize = 5

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(src)))
	binary.BigEndian.PutUint32(dst, uint32(len(src)))

	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst[lz4HeaderSize:])
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		dst[4] = 0
		n = copy(dst[lz4HeaderSize:], src)
	} else {
		dst[4] = 1
	}
	return dst[:lz4HeaderSize+n], nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < lz4HeaderSize {
		return nil, errCorruptLZ4
	}
	size := binary.BigEndian.Uint32(src)
	body := src[lz4HeaderSize:]
	if src[4] == 0 {
		if uint32(len(body)) != size {
			return nil, errCorruptLZ4
		}
		return append([]byte(nil), body...), nil
	}

	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, err
	}
	if uint32(n) != size {
		return nil, errCorruptLZ4
	}
	return dst, nil
}

func (lz4Compressor) DecodedLen(src []byte) (int, error) {
	if len(src) < lz4HeaderSize {
		return 0, errCorruptLZ4
	}
	return int(binary.BigEndian.Uint32(src)), nil
}

func (lz4Compressor) Type() Type {
	return TypeLZ4
}
