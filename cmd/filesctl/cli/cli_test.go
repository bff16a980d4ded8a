package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/files_sdk_go/cmd/filesctl/cli"
	"github.com/sitekit/files_sdk_go/internal/devseed"
	"github.com/sitekit/files_sdk_go/internal/sandbox"
	"github.com/sitekit/files_sdk_go/pkg/files"
	filesmock "github.com/sitekit/files_sdk_go/pkg/files/mock"
)

type harness struct {
	store *filesmock.Mock
	url   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"FILES_API_URL", "FILES_MODE", "FILES_RUNTIME_MODE", "FILES_SEED", "FILES_MOCK_SEED", "FILES_ANTIFORGERY_TOKEN"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	store := filesmock.New()
	require.NoError(t, store.Seed([]devseed.FileSeedEntry{
		{FolderID: 10, FolderPath: "Public", Name: "b.txt", Text: "bee"},
		{FolderID: 10, FolderPath: "Public", Name: "a.txt", Text: "ay"},
	}))
	srv := httptest.NewServer(sandbox.New(store, sandbox.Config{Prefix: "/api", Token: "tok", Logger: zerolog.Nop()}).Handler())
	t.Cleanup(srv.Close)
	return &harness{store: store, url: srv.URL + "/api"}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--mode", "http", "--api-url", h.url, "--poll-delay", "0s", "--token", "tok"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListByFolderID(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "list", "--folder-id", "10")
	require.NoError(t, err)

	var list []files.File
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "a.txt", list[0].Name)
}

func TestListByPathTable(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "-o", "table", "list", "--path", "Public")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "b.txt")
}

func TestListRequiresFolder(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "list")
	assert.ErrorContains(t, err, "--folder-id")
}

func TestRecordCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "add", "--folder-id", "10", "--name", "c.md", "--description", "draft")
	require.NoError(t, err)
	var created files.File
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.Positive(t, created.FileID)
	id := strconv.Itoa(created.FileID)

	out, err = h.run(t, "update", id, "--description", "final")
	require.NoError(t, err)
	var updated files.File
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "final", updated.Description)
	assert.Equal(t, "c.md", updated.Name)

	out, err = h.run(t, "-o", "yaml", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "final")

	_, err = h.run(t, "delete", id)
	require.NoError(t, err)

	_, err = h.run(t, "get", id)
	assert.ErrorIs(t, err, files.ErrNotFound)

	_, err = h.run(t, "get", "abc")
	assert.ErrorContains(t, err, "invalid file id")
}

func TestDownloadToFile(t *testing.T) {
	h := newHarness(t)
	list, err := h.store.ListFiles(context.Background(), "10")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.txt")
	_, err = h.run(t, "download", strconv.Itoa(list[0].FileID), "--out", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "bee", string(data))
}

func TestUploadCommand(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "one.txt")
	second := filepath.Join(dir, "two.txt")
	require.NoError(t, os.WriteFile(first, []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("2"), 0o600))

	_, err := h.run(t, "upload", "--folder-id", "10", first, second)
	require.NoError(t, err)

	list, err := h.store.ListFiles(context.Background(), "10")
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestUploadCommandReportsMissing(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "one.txt")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o600))

	cmd := cli.NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--mode", "http", "--api-url", h.url, "--poll-delay", "0s", "--poll-attempts", "2", "--token", "wrong",
		"upload", "--folder-id", "10", path})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "missing: one.txt")
}
