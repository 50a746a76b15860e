package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_MergesIntoBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universes.yaml")
	content := `
universes:
  - id: ENERGY
    name: Oil Majors
    max_symbols: 5
    symbols: [xom, cvx, " shel "]
  - id: SEMIS
    name: Semiconductors
    symbols: [NVDA, AMD, AVGO, nvda]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	defs, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, defs, 6)

	energy := defs[3]
	assert.Equal(t, Energy, energy.ID)
	assert.Equal(t, "Oil Majors", energy.Name)
	assert.Equal(t, []string{"XOM", "CVX", "SHEL"}, energy.Symbols)
	assert.Equal(t, 5, energy.MaxSymbols)

	semis := defs[5]
	assert.Equal(t, "SEMIS", semis.ID)
	assert.Equal(t, []string{"NVDA", "AMD", "AVGO"}, semis.Symbols)
	assert.Equal(t, 50, semis.MaxSymbols, "default limit applied")
}

func TestLoadCatalog_EmptyPathReturnsBuiltins(t *testing.T) {
	defs, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, defs, 5)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "universes: [::"},
		{"bad id", "universes:\n  - id: lower\n"},
		{"over limit", "universes:\n  - id: TINY\n    max_symbols: 1\n    symbols: [A, B]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mergeCatalog(Builtins(), []byte(tt.content))
			assert.Error(t, err)
		})
	}
}
