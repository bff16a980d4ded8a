package devseed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFileSeedJSON(t *testing.T) {
	path := writeSeed(t, "seed.json", `[
		{"site_id":1,"folder_id":3,"folder_path":"Public/","name":"logo.png","base64":"aGVsbG8="},
		{"site_id":1,"folder_path":"Public/Docs/","name":"readme.txt","text":"hi"}
	]`)

	entries, err := LoadFileSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].FolderID)
	assert.Equal(t, "aGVsbG8=", entries[0].Base64)
	assert.Equal(t, "Public/Docs/", entries[1].FolderPath)
	assert.Equal(t, "hi", entries[1].Text)
}

func TestLoadFileSeedYAML(t *testing.T) {
	path := writeSeed(t, "seed.yaml", `
- site_id: 2
  folder_path: Users/4/
  name: notes.md
  text: "# notes"
  description: personal notes
`)

	entries, err := LoadFileSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].SiteID)
	assert.Equal(t, "# notes", entries[0].Text)
	assert.Equal(t, "personal notes", entries[0].Description)
}

func TestParseFileSeedValidation(t *testing.T) {
	_, err := ParseFileSeed([]byte(`[{"folder_id":1}]`), ".json")
	require.ErrorContains(t, err, "name is required")

	_, err = ParseFileSeed([]byte(`[{"name":"a.txt"}]`), ".json")
	require.ErrorContains(t, err, "folder_id or folder_path")

	_, err = ParseFileSeed([]byte(`[{"name":"a.txt","folder_id":1,"text":"x","base64":"eA=="}]`), ".json")
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = ParseFileSeed([]byte(`not: [valid`), ".yml")
	require.Error(t, err)
}

func TestLoadFileSeedMissingFile(t *testing.T) {
	_, err := LoadFileSeed(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
