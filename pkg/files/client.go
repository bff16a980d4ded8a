package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitekit/files_sdk_go/internal/httpx"
)

// Backend performs the raw File API calls. The HTTP backend talks to a
// remote server; mocks and tests provide their own implementations.
type Backend interface {
	ListFiles(ctx context.Context, folder string) ([]File, error)
	ListFilesByPath(ctx context.Context, siteID int, folderPath string) ([]File, error)
	GetFile(ctx context.Context, fileID int) (*File, error)
	AddFile(ctx context.Context, file *File) (*File, error)
	UpdateFile(ctx context.Context, file *File) (*File, error)
	DeleteFile(ctx context.Context, fileID int) error
	UploadFromURL(ctx context.Context, sourceURL string, folderID int, name string) (*File, error)
	Download(ctx context.Context, fileID int) ([]byte, error)
	// UploadEndpoint is the address handed to the UploadTransport.
	UploadEndpoint() string
}

// Client provides typed access to the File API.
type Client struct {
	backend   Backend
	transport UploadTransport
	confirm   ConfirmPolicy
	logger    zerolog.Logger
	httpOpts  []httpx.Option
}

// Option configures a Client.
type Option func(*Client)

// WithUploadTransport sets the transport used by UploadFiles.
func WithUploadTransport(t UploadTransport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithConfirmPolicy overrides the upload confirmation poll.
func WithConfirmPolicy(p ConfirmPolicy) Option {
	return func(c *Client) {
		c.confirm = p
	}
}

// WithLogger sets the logger used by the client and its HTTP backend.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.httpOpts = append(c.httpOpts, httpx.WithLogger(l))
	}
}

// WithHTTPClient overrides the *http.Client of the HTTP backend.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpx.WithHTTPClient(h))
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpx.WithTimeout(d))
	}
}

// WithHeaders adds headers sent with every HTTP request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpx.WithHeaders(h))
	}
}

var noRetry = httpx.RetryPolicy{MaxRetries: 0}

// WithRetryPolicy enables retries of transient HTTP failures (408, 429, 5xx
// and network errors) with exponential backoff.
func WithRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		policy := httpx.DefaultRetryPolicy
		policy.MaxRetries = maxRetries
		policy.BaseDelay = baseDelay
		policy.MaxDelay = maxDelay
		c.httpOpts = append(c.httpOpts, httpx.WithRetryPolicy(policy))
	}
}

// New constructs an HTTP-backed client. baseURL is the API root; requests go
// to the "File" resource below it. Failed requests are not retried unless
// WithRetryPolicy is given.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := newClient(opts)
	httpOpts := append([]httpx.Option{httpx.WithRetryPolicy(noRetry)}, c.httpOpts...)
	cl, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	c.backend = &httpBackend{client: cl}
	return c, nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client, opts ...Option) *Client {
	c := newClient(opts)
	c.backend = &httpBackend{client: httpClient}
	return c
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend, opts ...Option) *Client {
	c := newClient(opts)
	c.backend = b
	return c
}

func newClient(opts []Option) *Client {
	c := &Client{
		confirm: DefaultConfirmPolicy,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.confirm = c.confirm.normalize()
	return c
}

// ListByFolderID returns the files of a folder, sorted by name.
func (c *Client) ListByFolderID(ctx context.Context, folderID int) ([]File, error) {
	return c.ListByFolder(ctx, strconv.Itoa(folderID))
}

// ListByFolder returns the files of a folder addressed by an opaque token
// (a folder id or a server-resolved identifier), sorted by name.
func (c *Client) ListByFolder(ctx context.Context, folder string) ([]File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if strings.TrimSpace(folder) == "" {
		return nil, fmt.Errorf("files: folder is required")
	}
	list, err := c.backend.ListFiles(ctx, folder)
	if err != nil {
		return nil, err
	}
	return sortByName(list), nil
}

// ListByPath returns the files stored under folderPath within a site, sorted
// by name. The path is terminated with a separator before it is sent. A
// missing folder yields an empty slice rather than an error.
func (c *Client) ListByPath(ctx context.Context, siteID int, folderPath string) ([]File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	list, err := c.backend.ListFilesByPath(ctx, siteID, TerminatePath(folderPath))
	if errors.Is(err, ErrNotFound) {
		c.logger.Debug().Int("site_id", siteID).Str("path", folderPath).Msg("folder not found, returning empty listing")
		return []File{}, nil
	}
	if err != nil {
		return nil, err
	}
	return sortByName(list), nil
}

// Get fetches a single file record.
func (c *Client) Get(ctx context.Context, fileID int) (*File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	return c.backend.GetFile(ctx, fileID)
}

// Add creates a file record and returns the stored version, including the
// server-assigned FileID.
func (c *Client) Add(ctx context.Context, file *File) (*File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if file == nil {
		return nil, fmt.Errorf("files: file is required")
	}
	return c.backend.AddFile(ctx, file)
}

// Update stores changes to the record identified by file.FileID.
func (c *Client) Update(ctx context.Context, file *File) (*File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if file == nil {
		return nil, fmt.Errorf("files: file is required")
	}
	if file.FileID <= 0 {
		return nil, fmt.Errorf("files: file id is required for update")
	}
	return c.backend.UpdateFile(ctx, file)
}

// Delete removes a file record.
func (c *Client) Delete(ctx context.Context, fileID int) error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("files: client is nil")
	}
	return c.backend.DeleteFile(ctx, fileID)
}

// UploadFromURL asks the server to fetch sourceURL into the folder under the
// given name and returns the created record.
func (c *Client) UploadFromURL(ctx context.Context, sourceURL string, folderID int, name string) (*File, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if strings.TrimSpace(sourceURL) == "" {
		return nil, fmt.Errorf("files: source url is required")
	}
	return c.backend.UploadFromURL(ctx, sourceURL, folderID, name)
}

// Download returns the contents of a file.
func (c *Client) Download(ctx context.Context, fileID int) ([]byte, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	return c.backend.Download(ctx, fileID)
}

// DownloadTo writes the contents of a file into w.
func (c *Client) DownloadTo(ctx context.Context, fileID int, w io.Writer) (int64, error) {
	data, err := c.Download(ctx, fileID)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// TerminatePath appends the platform path separator to p unless it already
// ends with a forward or back slash.
func TerminatePath(p string) string {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`) {
		return p
	}
	return p + string(filepath.Separator)
}

func sortByName(list []File) []File {
	if list == nil {
		return []File{}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
