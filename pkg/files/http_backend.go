package files

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sitekit/files_sdk_go/internal/apijson"
	"github.com/sitekit/files_sdk_go/internal/httpx"
)

const (
	resourcePath   = "File"
	uploadPath     = resourcePath + "/upload"
	downloadPrefix = resourcePath + "/download/"
)

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) ListFiles(ctx context.Context, folder string) ([]File, error) {
	var out []File
	q := url.Values{"folder": []string{folder}}
	if err := b.client.GetJSON(ctx, resourcePath, q, &out); err != nil {
		return nil, classify("list folder "+folder, err)
	}
	return out, nil
}

func (b *httpBackend) ListFilesByPath(ctx context.Context, siteID int, folderPath string) ([]File, error) {
	var out []File
	path := fmt.Sprintf("%s/%d/%s", resourcePath, siteID, url.QueryEscape(folderPath))
	if err := b.client.GetJSON(ctx, path, nil, &out); err != nil {
		return nil, classify("list path "+folderPath, err)
	}
	return out, nil
}

func (b *httpBackend) GetFile(ctx context.Context, fileID int) (*File, error) {
	var out *File
	if err := b.client.GetJSON(ctx, filePath(fileID), nil, &out); err != nil {
		return nil, classify(fmt.Sprintf("get file %d", fileID), err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: file %d", ErrNotFound, fileID)
	}
	return out, nil
}

func (b *httpBackend) AddFile(ctx context.Context, file *File) (*File, error) {
	var out *File
	if err := b.client.SendJSON(ctx, http.MethodPost, resourcePath, file, &out); err != nil {
		return nil, classify("add file", err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: add file returned no record", ErrMalformedResponse)
	}
	return out, nil
}

func (b *httpBackend) UpdateFile(ctx context.Context, file *File) (*File, error) {
	var out *File
	if err := b.client.SendJSON(ctx, http.MethodPut, filePath(file.FileID), file, &out); err != nil {
		return nil, classify(fmt.Sprintf("update file %d", file.FileID), err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: update file %d returned no record", ErrMalformedResponse, file.FileID)
	}
	return out, nil
}

func (b *httpBackend) DeleteFile(ctx context.Context, fileID int) error {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   filePath(fileID),
	})
	if err != nil {
		return classify(fmt.Sprintf("delete file %d", fileID), err)
	}
	_, _ = httpx.ReadAllAndClose(resp.Body)
	return nil
}

func (b *httpBackend) UploadFromURL(ctx context.Context, sourceURL string, folderID int, name string) (*File, error) {
	var out *File
	q := url.Values{
		"url":      []string{sourceURL},
		"folderid": []string{strconv.Itoa(folderID)},
		"name":     []string{name},
	}
	if err := b.client.GetJSON(ctx, uploadPath, q, &out); err != nil {
		return nil, classify("upload from url", err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: upload from url returned no record", ErrMalformedResponse)
	}
	return out, nil
}

func (b *httpBackend) Download(ctx context.Context, fileID int) ([]byte, error) {
	data, err := b.client.GetBytes(ctx, downloadPrefix+strconv.Itoa(fileID))
	if err != nil {
		return nil, classify(fmt.Sprintf("download file %d", fileID), err)
	}
	return data, nil
}

func (b *httpBackend) UploadEndpoint() string {
	endpoint, err := b.client.ResolveURL(uploadPath, nil)
	if err != nil {
		return uploadPath
	}
	return endpoint
}

func filePath(fileID int) string {
	return resourcePath + "/" + strconv.Itoa(fileID)
}

// classify maps transport-level failures onto the package sentinels while
// keeping the original error reachable through errors.As.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("files: %s: %w", op, err)
	}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.NotFound() {
			return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	var decErr *apijson.DecodeError
	if errors.As(err, &decErr) {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
