package files_sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/files_sdk_go/pkg/files"
	"github.com/sitekit/files_sdk_go/pkg/files_sdk"
)

func TestNewFromEnvHTTPMode(t *testing.T) {
	var gotPath, gotFolder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFolder = r.URL.Query().Get("folder")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"fileId":1,"folderId":3,"name":"a.txt","size":1}]`))
	}))
	defer srv.Close()

	t.Setenv("FILES_RUNTIME_MODE", "http")
	t.Setenv("FILES_API_URL", srv.URL+"/api")

	client, mode, err := files_sdk.NewFromEnv(files.WithRetryPolicy(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "http", mode)

	list, err := client.ListByFolderID(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/api/File", gotPath)
	assert.Equal(t, "3", gotFolder)
}

func TestNewFromEnvHTTPModeRequiresURL(t *testing.T) {
	t.Setenv("FILES_RUNTIME_MODE", "http")
	t.Setenv("FILES_API_URL", "")

	_, _, err := files_sdk.NewFromEnv()
	assert.ErrorContains(t, err, "FILES_API_URL")
}

func TestNewFromEnvAutoFallsBackToMock(t *testing.T) {
	t.Setenv("FILES_RUNTIME_MODE", "")
	t.Setenv("FILES_API_URL", "")
	t.Setenv("FILES_MOCK_SEED", "")

	client, mode, err := files_sdk.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mock", mode)

	list, err := client.ListByFolderID(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewFromEnvUnsupportedMode(t *testing.T) {
	t.Setenv("FILES_RUNTIME_MODE", "grpc")
	_, _, err := files_sdk.NewFromEnv()
	assert.ErrorContains(t, err, "unsupported")
}

func TestNewFromEnvSeed(t *testing.T) {
	seed := "- folder_path: Public\n  name: hello.txt\n  text: seed-data\n"
	t.Setenv("FILES_RUNTIME_MODE", "mock")
	t.Setenv("FILES_MOCK_SEED", writeTempFile(t, "seed.yaml", []byte(seed)))

	client, mode, err := files_sdk.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mock", mode)

	ctx := context.Background()
	list, err := client.ListByPath(ctx, 1, "Public")
	require.NoError(t, err)
	require.Len(t, list, 1)

	data, err := client.Download(ctx, list[0].FileID)
	require.NoError(t, err)
	assert.Equal(t, "seed-data", string(data))
}

func TestNewFromEnvBadSeed(t *testing.T) {
	t.Setenv("FILES_RUNTIME_MODE", "mock")
	t.Setenv("FILES_MOCK_SEED", filepath.Join(t.TempDir(), "missing.json"))

	_, _, err := files_sdk.NewFromEnv()
	assert.ErrorContains(t, err, "load seed")
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
