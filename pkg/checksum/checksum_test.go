package checksum

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashers(t *testing.T) {
	data := []byte("impact")
	tests := []struct {
		typ     Type
		enabled bool
	}{
		{TypeNone, false},
		{TypeXXHash, true},
		{TypeCRC32C, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			h, err := New(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, Enabled(h))

			sum := h.Sum(data)
			assert.True(t, h.Verify(data, sum))
			if tt.enabled {
				assert.False(t, h.Verify([]byte("impacT"), sum))
			}
		})
	}
}

func TestXXHashLow32(t *testing.T) {
	h, _ := New(TypeXXHash)
	assert.Equal(t, uint32(xxhash.Sum64String("abc")), h.Sum([]byte("abc")))
}

func TestUnsupported(t *testing.T) {
	_, err := New("md5")
	assert.ErrorIs(t, err, ErrUnsupported)
}
