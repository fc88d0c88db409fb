package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `[
  {"id": "1", "title": "Blue Denim Jacket", "category": "men"},
  {"id": "2", "title": "Red Jacket", "category": "women"},
  {"id": "3", "title": "Sneakers", "category": "men", "rating": {"rate": 4.5, "count": 10}}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"searchctl"}, args...))
	return out.String(), err
}

func TestSearchCommandPrintsTiers(t *testing.T) {
	path := writeFile(t, "products.json", testCatalog)

	out, err := run(t, "search", "--catalog", path, "-q", "jacket", "--category", "men")
	require.NoError(t, err)

	var got struct {
		Outcome string `json:"outcome"`
		Tiers   struct {
			Primary     []struct{ ID string } `json:"primary"`
			Global      []struct{ ID string } `json:"global"`
			Suggestions []struct{ ID string } `json:"suggestions"`
		} `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "primary", got.Outcome)
	require.Len(t, got.Tiers.Primary, 1)
	assert.Equal(t, "1", got.Tiers.Primary[0].ID)
	assert.Empty(t, got.Tiers.Global)
	require.Len(t, got.Tiers.Suggestions, 2)
	assert.Equal(t, "3", got.Tiers.Suggestions[0].ID)
	assert.Equal(t, "2", got.Tiers.Suggestions[1].ID)
}

func TestSearchCommandUsesSynonymsFile(t *testing.T) {
	path := writeFile(t, "products.json", testCatalog)
	syn := writeFile(t, "synonyms.yaml", "kicks: [sneakers]\n")

	out, err := run(t, "search", "--catalog", path, "--synonyms", syn, "-q", "kicks")
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "primary"`)
}

func TestSearchCommandRequiresCatalog(t *testing.T) {
	_, err := run(t, "search", "-q", "jacket")
	assert.ErrorContains(t, err, "catalog")
}

func TestCategoriesCommand(t *testing.T) {
	path := writeFile(t, "products.json", testCatalog)

	out, err := run(t, "categories", "--catalog", path)
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"all", "men", "women"}, got)
}

func TestReadCatalogRejectsBadJSON(t *testing.T) {
	path := writeFile(t, "products.json", `{"not": "an array"}`)
	_, err := readCatalog(path)
	assert.ErrorContains(t, err, "parsing catalog")
}
