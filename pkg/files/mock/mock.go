package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sitekit/files_sdk_go/internal/devseed"
	"github.com/sitekit/files_sdk_go/pkg/files"
)

// DefaultSiteID is used for folders created without an explicit site.
const DefaultSiteID = 1

// Fetcher retrieves the contents of a remote URL for UploadFromURL.
type Fetcher func(ctx context.Context, sourceURL string) ([]byte, error)

// Folder is a folder known to the mock store. Paths use forward slashes and
// always end with one.
type Folder struct {
	FolderID int
	SiteID   int
	Path     string
}

type fileEntry struct {
	record files.File
	data   []byte
}

// Mock implements files.Backend in memory for tests and sandboxing.
type Mock struct {
	mu           sync.RWMutex
	folders      map[int]*Folder
	files        map[int]*fileEntry
	nextFolderID int
	nextFileID   int
	endpoint     string
	fetch        Fetcher
	now          func() time.Time
}

// New constructs an empty store.
func New() *Mock {
	return &Mock{
		folders:  make(map[int]*Folder),
		files:    make(map[int]*fileEntry),
		endpoint: "File/upload",
		fetch:    httpFetch,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetFetcher replaces the fetcher used by UploadFromURL.
func (m *Mock) SetFetcher(f Fetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f == nil {
		f = httpFetch
	}
	m.fetch = f
}

// SetUploadEndpoint changes the value reported by UploadEndpoint.
func (m *Mock) SetUploadEndpoint(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoint = endpoint
}

// Seed loads files from seed entries, creating folders as needed. An entry
// whose folder id names an existing folder with a different path is rejected.
func (m *Mock) Seed(entries []devseed.FileSeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("mock files: seed entry missing name")
		}
		data := []byte(e.Text)
		if e.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(e.Base64)
			if err != nil {
				return fmt.Errorf("mock files: decode base64 for %s: %w", e.Name, err)
			}
			data = decoded
		}

		siteID := e.SiteID
		if siteID <= 0 {
			siteID = DefaultSiteID
		}
		var folder *Folder
		switch {
		case e.FolderID > 0:
			folder = m.folders[e.FolderID]
			if folder != nil && strings.TrimSpace(e.FolderPath) != "" {
				if want := normalizeFolderPath(e.FolderPath); folder.Path != want {
					return fmt.Errorf("mock files: seed %s: folder %d has path %q, not %q",
						e.Name, e.FolderID, folder.Path, want)
				}
			}
			if folder == nil {
				folder = &Folder{FolderID: e.FolderID, SiteID: siteID, Path: normalizeFolderPath(e.FolderPath)}
				m.folders[e.FolderID] = folder
				if e.FolderID > m.nextFolderID {
					m.nextFolderID = e.FolderID
				}
			}
		default:
			folder = m.ensureFolderLocked(siteID, e.FolderPath)
		}

		entry := m.putLocked(folder.FolderID, e.Name, data)
		entry.record.Description = e.Description
		if e.LastModified != nil {
			ts := e.LastModified.UTC()
			entry.record.ModifiedOn = &ts
		}
	}
	return nil
}

// EnsureFolder returns the folder with the given site and path, creating it
// when absent.
func (m *Mock) EnsureFolder(siteID int, folderPath string) Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.ensureFolderLocked(siteID, folderPath)
}

func (m *Mock) ensureFolderLocked(siteID int, folderPath string) *Folder {
	p := normalizeFolderPath(folderPath)
	for _, f := range m.folders {
		if f.SiteID == siteID && f.Path == p {
			return f
		}
	}
	m.nextFolderID++
	f := &Folder{FolderID: m.nextFolderID, SiteID: siteID, Path: p}
	m.folders[f.FolderID] = f
	return f
}

// resolveFolderLocked accepts a numeric folder id or a folder path.
func (m *Mock) resolveFolderLocked(folder string) *Folder {
	if id, err := strconv.Atoi(strings.TrimSpace(folder)); err == nil {
		return m.folders[id]
	}
	p := normalizeFolderPath(folder)
	var match *Folder
	for _, f := range m.folders {
		if f.Path == p && (match == nil || f.FolderID < match.FolderID) {
			match = f
		}
	}
	return match
}

// ListFiles returns the records stored in a folder identified by id or path.
// Unknown folders yield an empty list.
func (m *Mock) ListFiles(ctx context.Context, folder string) ([]files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := m.resolveFolderLocked(folder)
	if f == nil {
		return []files.File{}, nil
	}
	return m.listLocked(f.FolderID), nil
}

// ListFilesByPath returns nil when the site has no folder at folderPath.
func (m *Mock) ListFilesByPath(ctx context.Context, siteID int, folderPath string) ([]files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := normalizeFolderPath(folderPath)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.folders {
		if f.SiteID == siteID && f.Path == p {
			return m.listLocked(f.FolderID), nil
		}
	}
	return nil, nil
}

func (m *Mock) listLocked(folderID int) []files.File {
	out := []files.File{}
	for _, e := range m.files {
		if e.record.FolderID == folderID {
			out = append(out, e.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out
}

// GetFile returns a record by id.
func (m *Mock) GetFile(ctx context.Context, fileID int) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: file %d", files.ErrNotFound, fileID)
	}
	rec := e.record
	return &rec, nil
}

// AddFile stores a new record with empty contents.
func (m *Mock) AddFile(ctx context.Context, file *files.File) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if file == nil || strings.TrimSpace(file.Name) == "" {
		return nil, fmt.Errorf("mock files: name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[file.FolderID]; !ok {
		return nil, fmt.Errorf("%w: folder %d", files.ErrNotFound, file.FolderID)
	}

	m.nextFileID++
	now := m.now()
	rec := *file
	rec.FileID = m.nextFileID
	rec.Extension = extensionOf(rec.Name)
	rec.CreatedOn = &now
	rec.ModifiedOn = &now
	m.files[rec.FileID] = &fileEntry{record: rec}
	return &rec, nil
}

// UpdateFile replaces the editable fields of an existing record.
func (m *Mock) UpdateFile(ctx context.Context, file *files.File) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("mock files: file is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[file.FileID]
	if !ok {
		return nil, fmt.Errorf("%w: file %d", files.ErrNotFound, file.FileID)
	}
	if _, ok := m.folders[file.FolderID]; !ok {
		return nil, fmt.Errorf("%w: folder %d", files.ErrNotFound, file.FolderID)
	}

	now := m.now()
	e.record.FolderID = file.FolderID
	if strings.TrimSpace(file.Name) != "" {
		e.record.Name = file.Name
		e.record.Extension = extensionOf(file.Name)
	}
	e.record.Description = file.Description
	e.record.ImageHeight = file.ImageHeight
	e.record.ImageWidth = file.ImageWidth
	e.record.ModifiedBy = file.ModifiedBy
	e.record.ModifiedOn = &now
	rec := e.record
	return &rec, nil
}

// DeleteFile removes a record and its contents.
func (m *Mock) DeleteFile(ctx context.Context, fileID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("%w: file %d", files.ErrNotFound, fileID)
	}
	delete(m.files, fileID)
	return nil
}

// UploadFromURL fetches sourceURL and stores it in the folder. An empty name
// falls back to the last segment of the URL path.
func (m *Mock) UploadFromURL(ctx context.Context, sourceURL string, folderID int, name string) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		u, err := url.Parse(sourceURL)
		if err != nil {
			return nil, fmt.Errorf("mock files: invalid url: %w", err)
		}
		name = path.Base(u.Path)
		if name == "." || name == "/" {
			return nil, fmt.Errorf("mock files: cannot derive a name from %q", sourceURL)
		}
	}

	m.mu.RLock()
	fetch := m.fetch
	_, folderOK := m.folders[folderID]
	m.mu.RUnlock()
	if !folderOK {
		return nil, fmt.Errorf("%w: folder %d", files.ErrNotFound, folderID)
	}

	data, err := fetch(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("mock files: fetch %s: %w", sourceURL, err)
	}
	return m.UploadContent(ctx, strconv.Itoa(folderID), name, data)
}

// UploadContent stores data under name in a folder identified by id or path,
// replacing the contents of an existing file with the same name.
func (m *Mock) UploadContent(ctx context.Context, folder, name string, data []byte) (*files.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("mock files: name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.resolveFolderLocked(folder)
	if f == nil {
		return nil, fmt.Errorf("%w: folder %s", files.ErrNotFound, folder)
	}
	rec := m.putLocked(f.FolderID, name, data).record
	return &rec, nil
}

func (m *Mock) putLocked(folderID int, name string, data []byte) *fileEntry {
	now := m.now()
	for _, e := range m.files {
		if e.record.FolderID == folderID && e.record.Name == name {
			e.data = append([]byte(nil), data...)
			e.record.Size = int64(len(data))
			e.record.ModifiedOn = &now
			return e
		}
	}
	m.nextFileID++
	e := &fileEntry{
		record: files.File{
			FileID:     m.nextFileID,
			FolderID:   folderID,
			Name:       name,
			Extension:  extensionOf(name),
			Size:       int64(len(data)),
			CreatedOn:  &now,
			ModifiedOn: &now,
		},
		data: append([]byte(nil), data...),
	}
	m.files[e.record.FileID] = e
	return e
}

// Download returns the stored contents of a file.
func (m *Mock) Download(ctx context.Context, fileID int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: file %d", files.ErrNotFound, fileID)
	}
	return append([]byte(nil), e.data...), nil
}

// UploadEndpoint reports the address handed to upload transports.
func (m *Mock) UploadEndpoint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.endpoint
}

// Folders returns a snapshot of the known folders ordered by id.
func (m *Mock) Folders() []Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Folder, 0, len(m.folders))
	for _, f := range m.folders {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FolderID < out[j].FolderID })
	return out
}

func normalizeFolderPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	p = strings.TrimLeft(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func extensionOf(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func httpFetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
