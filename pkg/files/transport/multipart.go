// Package transport provides a files.UploadTransport that posts local files
// to the File API upload endpoint as multipart/form-data, reporting progress
// on a terminal progress bar per element.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sitekit/files_sdk_go/internal/httpx"
)

// Multipart form layout of an upload request. Each file is posted on its own
// with the destination folder and, when set, the antiforgery token both as a
// form field and as a header.
const (
	FolderField    = "folder"
	FileField      = "formfile"
	TokenField     = "__RequestVerificationToken"
	TokenHeader    = "RequestVerificationToken"
	progressBarSfx = "ProgressBar"
	progressInfSfx = "ProgressInfo"
)

var (
	// ErrNothingStaged is returned by UploadFiles when no files were staged
	// for the element.
	ErrNothingStaged = errors.New("transport: no files staged for element")
	// ErrUploadInProgress is returned when an element already has a running
	// transfer.
	ErrUploadInProgress = errors.New("transport: upload already in progress for element")
	// ErrUnknownElement is returned by Wait for elements that never started
	// an upload.
	ErrUnknownElement = errors.New("transport: no upload for element")
)

// Multipart implements files.UploadTransport over HTTP.
type Multipart struct {
	httpClient *http.Client
	baseURL    *url.URL
	output     io.Writer
	logger     zerolog.Logger

	mu      sync.Mutex
	staged  map[string][]string
	uploads map[string]*upload
	attrs   map[string]map[string]string
}

type upload struct {
	id   string
	bar  *pb.ProgressBar
	done chan struct{}
	err  error

	barMu    sync.Mutex
	started  bool
	finished bool
}

func (u *upload) startBar(total int64) {
	u.barMu.Lock()
	defer u.barMu.Unlock()
	if u.started || u.finished {
		return
	}
	u.started = true
	u.bar.SetTotal(total)
	u.bar.Start()
}

// finishBar stops the bar once; a bar finished before it started never starts.
func (u *upload) finishBar() {
	u.barMu.Lock()
	defer u.barMu.Unlock()
	if u.finished {
		return
	}
	u.finished = true
	if u.started {
		u.bar.Finish()
	}
}

// Option configures a Multipart transport.
type Option func(*Multipart)

// WithHTTPClient overrides the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Multipart) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithBaseURL resolves relative upload endpoints against base.
func WithBaseURL(base string) Option {
	return func(m *Multipart) {
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			if !strings.HasSuffix(u.Path, "/") {
				u.Path += "/"
			}
			m.baseURL = u
		}
	}
}

// WithOutput sets where progress bars are drawn. Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(m *Multipart) {
		if w != nil {
			m.output = w
		}
	}
}

// WithLogger sets the transport logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Multipart) {
		m.logger = l
	}
}

// NewMultipart constructs a transport.
func NewMultipart(opts ...Option) *Multipart {
	m := &Multipart{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		output:     os.Stderr,
		logger:     zerolog.Nop(),
		staged:     make(map[string][]string),
		uploads:    make(map[string]*upload),
		attrs:      make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stage registers local files to be sent by the next upload for elementID.
// Staging again appends to the pending list.
func (m *Multipart) Stage(elementID string, paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[elementID] = append(m.staged[elementID], paths...)
}

// Staged returns the base names of the files staged for elementID, which are
// the names the server stores them under.
func (m *Multipart) Staged(elementID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.staged[elementID]))
	for _, p := range m.staged[elementID] {
		names = append(names, filepath.Base(p))
	}
	return names
}

// UploadFiles starts posting the files staged for elementID to endpoint and
// returns without waiting for the transfer. Use Wait to collect its result.
func (m *Multipart) UploadFiles(ctx context.Context, endpoint, folder, elementID, token string) error {
	target, err := m.resolve(endpoint)
	if err != nil {
		return err
	}

	m.mu.Lock()
	paths := m.staged[elementID]
	if len(paths) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNothingStaged, elementID)
	}
	if prev, ok := m.uploads[elementID]; ok {
		select {
		case <-prev.done:
		default:
			m.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUploadInProgress, elementID)
		}
	}
	delete(m.staged, elementID)

	bar := pb.New64(0)
	bar.Set(pb.Bytes, true)
	bar.SetTemplate(`{{string . "element"}} {{counters . }} {{bar . }} {{percent . }}`)
	bar.Set("element", elementID)
	bar.SetWriter(m.output)
	u := &upload{
		id:   uuid.NewString(),
		bar:  bar,
		done: make(chan struct{}),
	}
	m.uploads[elementID] = u
	m.mu.Unlock()

	log := m.logger.With().Str("upload_id", u.id).Str("element_id", elementID).Logger()
	log.Debug().Str("endpoint", target).Int("files", len(paths)).Msg("upload started")

	go func() {
		defer close(u.done)
		defer u.finishBar()
		u.err = m.send(ctx, u, target, folder, token, paths, log)
		if u.err != nil {
			log.Warn().Err(u.err).Msg("upload failed")
			return
		}
		log.Debug().Msg("upload finished")
	}()
	return nil
}

// Wait blocks until the transfer for elementID ends, or ctx is done, and
// returns the transfer error.
func (m *Multipart) Wait(ctx context.Context, elementID string) error {
	m.mu.Lock()
	u, ok := m.uploads[elementID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownElement, elementID)
	}
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetElementAttribute records an attribute for an element. Hiding an
// element's progress bar or info finishes its terminal bar.
func (m *Multipart) SetElementAttribute(_ context.Context, elementID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attrs[elementID] == nil {
		m.attrs[elementID] = make(map[string]string)
	}
	m.attrs[elementID][name] = value

	if name != "style" || !strings.Contains(strings.ReplaceAll(value, " ", ""), "display:none") {
		return nil
	}
	base := strings.TrimSuffix(strings.TrimSuffix(elementID, progressBarSfx), progressInfSfx)
	if u, ok := m.uploads[base]; ok && base != elementID {
		u.finishBar()
	}
	return nil
}

// Attribute returns the last value set for an element attribute.
func (m *Multipart) Attribute(elementID, name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.attrs[elementID][name]
	return v, ok
}

func (m *Multipart) resolve(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("transport: invalid endpoint %q: %w", endpoint, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if m.baseURL == nil {
		return "", fmt.Errorf("transport: relative endpoint %q requires a base URL", endpoint)
	}
	return m.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery}).String(), nil
}

type part struct {
	name string
	body []byte
	ct   string
}

func (m *Multipart) send(ctx context.Context, u *upload, target, folder, token string, paths []string, log zerolog.Logger) error {
	parts := make([]part, 0, len(paths))
	var total int64
	for _, p := range paths {
		body, ct, err := encodePart(p, folder, token)
		if err != nil {
			return err
		}
		parts = append(parts, part{name: filepath.Base(p), body: body, ct: ct})
		total += int64(len(body))
	}

	u.startBar(total)

	var errs []error
	for _, p := range parts {
		if err := m.post(ctx, u, target, token, p); err != nil {
			errs = append(errs, fmt.Errorf("transport: upload %s: %w", p.name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		log.Debug().Str("file", p.name).Int("bytes", len(p.body)).Msg("file sent")
	}
	return errors.Join(errs...)
}

func (m *Multipart) post(ctx context.Context, u *upload, target, token string, p part) error {
	// The proxy reader finishes the bar on Close, which the client calls
	// after every request.
	body := io.NopCloser(u.bar.NewProxyReader(bytes.NewReader(p.body)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(p.body))
	req.Header.Set("Content-Type", p.ct)
	req.Header.Set(httpx.RequestIDHeader, u.id)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := httpx.ReadAllAndClose(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpx.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Header:     resp.Header.Clone(),
		}
	}
	return nil
}

func encodePart(path, folder, token string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("transport: open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(FolderField, folder); err != nil {
		return nil, "", err
	}
	if token != "" {
		if err := w.WriteField(TokenField, token); err != nil {
			return nil, "", err
		}
	}
	fw, err := w.CreateFormFile(FileField, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("transport: read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
