package framer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-combat/pkg/checksum"
	"github.com/lk2023060901/xdooria-combat/pkg/compress"
)

func TestFramer_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		compression compress.Type
		checksum    checksum.Type
		payload     []byte
		compressed  bool
	}{
		{"none", compress.TypeNone, checksum.TypeNone, []byte("snapshot"), false},
		{"small payload stays raw", compress.TypeSnappy, checksum.TypeXXHash, []byte("tiny"), false},
		{"snappy", compress.TypeSnappy, checksum.TypeXXHash, bytes.Repeat([]byte("wolf "), 200), true},
		{"lz4", compress.TypeLZ4, checksum.TypeCRC32C, bytes.Repeat([]byte("bear "), 200), true},
		{"zstd", compress.TypeZstd, checksum.TypeXXHash, bytes.Repeat([]byte("boar "), 200), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(&Config{Compression: tt.compression, Checksum: tt.checksum})
			require.NoError(t, err)

			frame, err := f.Encode(7, tt.payload)
			require.NoError(t, err)

			h, payload, err := f.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, payload)
			assert.Equal(t, uint32(7), h.Op)
			assert.Equal(t, uint32(1), h.Seq)
			assert.Equal(t, tt.compressed, h.Compression != compress.TypeNone)
			assert.Equal(t, tt.checksum != checksum.TypeNone, h.HasChecksum)
		})
	}
}

func TestFramer_SeqMonotonic(t *testing.T) {
	f, err := New(nil)
	require.NoError(t, err)

	var last uint32
	for i := 0; i < 5; i++ {
		frame, err := f.Encode(1, []byte("x"))
		require.NoError(t, err)
		h, err := ParseHeader(frame)
		require.NoError(t, err)
		assert.Greater(t, h.Seq, last)
		last = h.Seq
	}
	assert.Equal(t, last, f.Seq())
}

func TestFramer_Errors(t *testing.T) {
	f, err := New(&Config{Compression: compress.TypeNone, Checksum: checksum.TypeXXHash, MaxPayloadBytes: 64})
	require.NoError(t, err)

	frame, err := f.Encode(1, []byte("payload"))
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, _, err := f.Decode(frame[:HeaderSize-1])
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[0] = 0
		_, _, err := f.Decode(bad)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[2] = 9
		_, _, err := f.Decode(bad)
		assert.ErrorIs(t, err, ErrBadVersion)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, _, err := f.Decode(frame[:len(frame)-1])
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("corrupted payload", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0xff
		_, _, err := f.Decode(bad)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := f.Encode(1, make([]byte, 65))
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFramer_DecodeRejectsOversizedBeforeDecompress(t *testing.T) {
	payload := bytes.Repeat([]byte("snapshot "), 1000)
	for _, typ := range []compress.Type{compress.TypeSnappy, compress.TypeLZ4, compress.TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			enc, err := New(&Config{Compression: typ})
			require.NoError(t, err)
			dec, err := New(&Config{Compression: typ, MaxPayloadBytes: 1024})
			require.NoError(t, err)

			frame, err := enc.Encode(1, payload)
			require.NoError(t, err)
			h, err := ParseHeader(frame)
			require.NoError(t, err)
			require.Less(t, int(h.Size), 1024)

			_, _, err = dec.Decode(frame)
			assert.ErrorIs(t, err, ErrTooLarge)
		})
	}

	// 声明 2GB 原始长度的 lz4 块
	body := []byte{0x7f, 0xff, 0xff, 0xff, 1, 0x00}
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint16(frame[0:2], Magic)
	frame[2] = Version
	frame[3] = compress.TypeLZ4.ID()
	binary.BigEndian.PutUint32(frame[12:16], uint32(len(body)))
	copy(frame[HeaderSize:], body)

	dec, err := New(&Config{MaxPayloadBytes: 1024})
	require.NoError(t, err)
	_, _, err = dec.Decode(frame)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFramer_DecodeForeignCompression(t *testing.T) {
	enc, err := New(&Config{Compression: compress.TypeLZ4})
	require.NoError(t, err)
	dec, err := New(&Config{Compression: compress.TypeSnappy})
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("pounce "), 100)
	frame, err := enc.Encode(2, payload)
	require.NoError(t, err)

	h, out, err := dec.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, compress.TypeLZ4, h.Compression)
	assert.Equal(t, payload, out)
}
