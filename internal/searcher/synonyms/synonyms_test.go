package synonyms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := Default()
	assert.Positive(t, table.Len())
	assert.Subset(t, table.Lookup("shirt"), []string{"tee", "tshirt", "top"})
	assert.Contains(t, table.Lookup("jewelry"), "jewelery")
	assert.Contains(t, table.Lookup("jewelery"), "jewelry")
	assert.Nil(t, table.Lookup("shirts"), "keys are literal")
}

func TestNewNormalizesKeys(t *testing.T) {
	table := New(map[string][]string{
		"T-Shirt": {"tee"},
		"Men's":   {"male"},
		"!!!":     {"ignored"},
	})
	assert.Equal(t, []string{"tee"}, table.Lookup("t shirt"))
	assert.Equal(t, []string{"male"}, table.Lookup("mens"))
	assert.Equal(t, 2, table.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hoodie: [sweatshirt, pullover]\nSneaker: [trainer]\n"), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sweatshirt", "pullover"}, table.Lookup("hoodie"))
	assert.Equal(t, []string{"trainer"}, table.Lookup("sneaker"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shirt: {tee"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestMergeOverlayWins(t *testing.T) {
	base := New(map[string][]string{"shirt": {"tee"}, "bag": {"purse"}})
	overlay := New(map[string][]string{"shirt": {"blouse"}})

	merged := base.Merge(overlay)
	assert.Equal(t, []string{"blouse"}, merged.Lookup("shirt"))
	assert.Equal(t, []string{"purse"}, merged.Lookup("bag"))
	assert.Equal(t, []string{"tee"}, base.Lookup("shirt"), "inputs are not modified")
}
