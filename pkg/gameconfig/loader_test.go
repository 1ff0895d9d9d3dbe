package gameconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID       string        `mapstructure:"id" validate:"required"`
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	Weight   float64       `mapstructure:"weight" validate:"gte=0,lte=1"`
}

func writeTable(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644))
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "abilities", `[
		{"id": "bite", "cooldown": "500ms", "weight": 0.5},
		{"id": "pounce", "cooldown": "3s", "weight": 0.8}
	]`)

	tbl, err := LoadTable[row](NewFileJsonLoader(dir, nil), "abilities", func(r *row) string { return r.ID })
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "bite", tbl.Rows[0].ID)

	p, ok := tbl.Get("pounce")
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, p.Cooldown)
}

func TestLoadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	load := NewFileJsonLoader(dir, nil)
	key := func(r *row) string { return r.ID }

	tests := []struct {
		name string
		body string
		is   error
	}{
		{"duplicate", `[{"id":"a"},{"id":"a"}]`, ErrDuplicateKey},
		{"validation", `[{"id":"a","weight":2}]`, nil},
		{"unknown field", `[{"id":"a","range":3}]`, nil},
		{"bad json", `{`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeTable(t, dir, "t", tt.body)
			_, err := LoadTable[row](load, "t", key)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
		})
	}
}

func TestLoadTable_Missing(t *testing.T) {
	tbl, err := LoadTable[row](NewFileJsonLoader(t.TempDir(), nil), "none", func(r *row) string { return r.ID })
	require.NoError(t, err)
	assert.Zero(t, tbl.Len())
}
