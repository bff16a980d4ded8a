package files

import (
	"errors"
	"time"
)

// File is the server-side metadata record of a stored file.
type File struct {
	FileID      int        `json:"fileId"`
	FolderID    int        `json:"folderId"`
	Name        string     `json:"name"`
	Extension   string     `json:"extension,omitempty"`
	Size        int64      `json:"size"`
	ImageHeight int        `json:"imageHeight,omitempty"`
	ImageWidth  int        `json:"imageWidth,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedOn   *time.Time `json:"createdOn,omitempty"`
	ModifiedBy  string     `json:"modifiedBy,omitempty"`
	ModifiedOn  *time.Time `json:"modifiedOn,omitempty"`
	IsDeleted   bool       `json:"isDeleted,omitempty"`
}

// UploadRequest describes a multi-file upload handed to an UploadTransport.
type UploadRequest struct {
	// Folder is a folder id or an already-resolved folder token.
	Folder string
	// Files are the names expected to appear in the folder once the
	// transfer completes.
	Files []string
	// ElementID correlates the transfer with its progress elements.
	ElementID string
	// AntiForgeryToken is forwarded to the transport unchanged.
	AntiForgeryToken string
}

var (
	// ErrNotFound indicates the requested file record is missing.
	ErrNotFound = errors.New("files: not found")
	// ErrTransport wraps network failures and non-2xx responses.
	ErrTransport = errors.New("files: transport error")
	// ErrMalformedResponse indicates a response body that could not be decoded.
	ErrMalformedResponse = errors.New("files: malformed response")
	// ErrNoUploadTransport is returned by UploadFiles when no transport is configured.
	ErrNoUploadTransport = errors.New("files: upload transport not configured")
)
