package files_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/files_sdk_go/internal/mocks"
	"github.com/sitekit/files_sdk_go/pkg/files"
)

const testEndpoint = "http://site.test/api/File/upload"

// scriptedBackend serves a different listing on each ListFiles call; the last
// listing repeats once the script runs out.
type scriptedBackend struct {
	mu       sync.Mutex
	listings [][]files.File
	listErr  error
	folders  []string
}

func (b *scriptedBackend) ListFiles(_ context.Context, folder string) ([]files.File, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.folders = append(b.folders, folder)
	if b.listErr != nil {
		return nil, b.listErr
	}
	if len(b.listings) == 0 {
		return nil, nil
	}
	idx := len(b.folders) - 1
	if idx >= len(b.listings) {
		idx = len(b.listings) - 1
	}
	return append([]files.File(nil), b.listings[idx]...), nil
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.folders)
}

func (b *scriptedBackend) ListFilesByPath(context.Context, int, string) ([]files.File, error) {
	return nil, nil
}
func (b *scriptedBackend) GetFile(context.Context, int) (*files.File, error) { return nil, nil }
func (b *scriptedBackend) AddFile(context.Context, *files.File) (*files.File, error) {
	return nil, nil
}
func (b *scriptedBackend) UpdateFile(context.Context, *files.File) (*files.File, error) {
	return nil, nil
}
func (b *scriptedBackend) DeleteFile(context.Context, int) error { return nil }
func (b *scriptedBackend) UploadFromURL(context.Context, string, int, string) (*files.File, error) {
	return nil, nil
}
func (b *scriptedBackend) Download(context.Context, int) ([]byte, error) { return nil, nil }
func (b *scriptedBackend) UploadEndpoint() string                      { return testEndpoint }

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func named(ns ...string) []files.File {
	out := make([]files.File, 0, len(ns))
	for i, n := range ns {
		out = append(out, files.File{FileID: i + 1, Name: n})
	}
	return out
}

func expectHidden(transport *mocks.MockUploadTransport, elementID string) {
	notCancelled := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	transport.On("SetElementAttribute", notCancelled, elementID+"ProgressInfo", "style", "display: none;").Return(nil).Once()
	transport.On("SetElementAttribute", notCancelled, elementID+"ProgressBar", "style", "display: none;").Return(nil).Once()
}

func newUploadClient(backend files.Backend, transport files.UploadTransport, sleeper *sleepRecorder) *files.Client {
	return files.NewWithBackend(backend,
		files.WithUploadTransport(transport),
		files.WithConfirmPolicy(files.ConfirmPolicy{Attempts: 5, Delay: 2 * time.Second, Sleep: sleeper.sleep}),
	)
}

func TestUploadFilesConfirmedOnFirstAttempt(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt", "b.txt", "other.txt")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, testEndpoint, "7", "upload1", "token-xyz").Return(nil).Once()
	expectHidden(transport, "upload1")
	sleeper := &sleepRecorder{}

	result, err := newUploadClient(backend, transport, sleeper).UploadFiles(context.Background(), files.UploadRequest{
		Folder:           "7",
		Files:            []string{"a.txt", "b.txt"},
		ElementID:        "upload1",
		AntiForgeryToken: "token-xyz",
	})
	require.NoError(t, err)
	assert.Equal(t, "", result)
	assert.Equal(t, 1, backend.calls())
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.delays)
	transport.AssertExpectations(t)
}

func TestUploadFilesReportsNamesNeverSeen(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, testEndpoint, "7", "up", "").Return(nil)
	expectHidden(transport, "up")
	sleeper := &sleepRecorder{}

	result, err := newUploadClient(backend, transport, sleeper).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt", "missing.txt"},
		ElementID: "up",
	})
	require.NoError(t, err)
	assert.Equal(t, "missing.txt", result)
	assert.Equal(t, 5, backend.calls())
	assert.Len(t, sleeper.delays, 5)
	transport.AssertExpectations(t)
}

func TestUploadFilesJoinsSeveralMissingNames(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")

	result, err := newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"x.txt", "a.txt", "y.txt", "x.txt"},
		ElementID: "up",
	})
	require.NoError(t, err)
	assert.Equal(t, "x.txt,y.txt", result)
}

func TestUploadFilesStopsWhenLastNameArrives(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{
		named("a.txt"),
		named("a.txt"),
		named("a.txt", "b.txt"),
		named("a.txt", "b.txt"),
	}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")
	sleeper := &sleepRecorder{}

	result, err := newUploadClient(backend, transport, sleeper).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt", "b.txt"},
		ElementID: "up",
	})
	require.NoError(t, err)
	assert.Equal(t, "", result)
	assert.Equal(t, 3, backend.calls())
	assert.Len(t, sleeper.delays, 3)
}

func TestUploadFilesWithNoRequestedNames(t *testing.T) {
	backend := &scriptedBackend{}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")

	var (
		result string
		err    error
	)
	require.NotPanics(t, func() {
		result, err = newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
			Folder:    "7",
			ElementID: "up",
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "", result)
	assert.Equal(t, 5, backend.calls())
}

func TestUploadFilesEmptyListingReportsEveryName(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{{}}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")

	result, err := newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt", "b.txt"},
		ElementID: "up",
	})
	require.NoError(t, err)
	assert.Equal(t, "a.txt,b.txt", result)
}

func TestUploadFilesInitiationFailure(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt")}}
	transport := &mocks.MockUploadTransport{}
	boom := errors.New("bridge unavailable")
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)
	expectHidden(transport, "up")

	_, err := newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt"},
		ElementID: "up",
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, backend.calls())
	transport.AssertExpectations(t)
}

func TestUploadFilesListingFailure(t *testing.T) {
	backend := &scriptedBackend{listErr: files.ErrTransport}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")

	_, err := newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt"},
		ElementID: "up",
	})
	require.ErrorIs(t, err, files.ErrTransport)
	assert.Equal(t, 1, backend.calls())
	transport.AssertExpectations(t)
}

func TestUploadFilesCancelledWhileWaiting(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	expectHidden(transport, "up")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := files.NewWithBackend(backend,
		files.WithUploadTransport(transport),
		files.WithConfirmPolicy(files.ConfirmPolicy{Attempts: 5, Delay: time.Hour}),
	)
	_, err := client.UploadFiles(ctx, files.UploadRequest{Folder: "7", Files: []string{"b.txt"}, ElementID: "up"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, backend.calls())
	transport.AssertExpectations(t)
}

func TestUploadFilesHideFailureDoesNotMaskResult(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("a.txt")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	transport.On("SetElementAttribute", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("element gone"))

	result, err := newUploadClient(backend, transport, &sleepRecorder{}).UploadFiles(context.Background(), files.UploadRequest{
		Folder:    "7",
		Files:     []string{"a.txt"},
		ElementID: "up",
	})
	require.NoError(t, err)
	assert.Equal(t, "", result)
	transport.AssertNumberOfCalls(t, "SetElementAttribute", 2)
}

func TestUploadFilesToFolderID(t *testing.T) {
	backend := &scriptedBackend{listings: [][]files.File{named("report.pdf")}}
	transport := &mocks.MockUploadTransport{}
	transport.On("UploadFiles", mock.Anything, testEndpoint, "12", "docs", "tok").Return(nil).Once()
	expectHidden(transport, "docs")

	result, err := newUploadClient(backend, transport, &sleepRecorder{}).
		UploadFilesToFolderID(context.Background(), 12, []string{"report.pdf"}, "docs", "tok")
	require.NoError(t, err)
	assert.Equal(t, "", result)
	assert.Equal(t, []string{"12"}, backend.folders)
	transport.AssertExpectations(t)
}

func TestUploadFilesRequiresTransport(t *testing.T) {
	client := files.NewWithBackend(&scriptedBackend{})
	_, err := client.UploadFiles(context.Background(), files.UploadRequest{Folder: "1"})
	require.ErrorIs(t, err, files.ErrNoUploadTransport)
}
