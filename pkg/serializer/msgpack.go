package serializer

import (
	"bytes"
	"io"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/lk2023060901/xdooria-combat/pkg/pool/bytebuff"
)

var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]any{})
	msgpackHandle.RawToString = true
}

// Encode msgpack 编码，返回的切片归调用方所有
func Encode(v any) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	if err := codec.NewEncoder(buf, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

// AppendEncode 将编码结果追加到 dst
func AppendEncode(dst []byte, v any) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	if err := codec.NewEncoder(buf, msgpackHandle).Encode(v); err != nil {
		return dst, err
	}
	return append(dst, buf.B...), nil
}

// Decode msgpack 解码
func Decode(data []byte, v any) error {
	return codec.NewDecoder(bytes.NewReader(data), msgpackHandle).Decode(v)
}

// NewEncoder 创建流式编码器
func NewEncoder(w io.Writer) *codec.Encoder {
	return codec.NewEncoder(w, msgpackHandle)
}

// NewDecoder 创建流式解码器
func NewDecoder(r io.Reader) *codec.Decoder {
	return codec.NewDecoder(r, msgpackHandle)
}
