package files

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitekit/files_sdk_go/internal/httpx"
)

const (
	progressInfoSuffix = "ProgressInfo"
	progressBarSuffix  = "ProgressBar"

	styleAttribute = "style"
	hiddenStyle    = "display: none;"
)

// UploadTransport performs the byte transfer of a multi-file upload on behalf
// of the client, typically a browser bridge.
type UploadTransport interface {
	// UploadFiles starts transferring the files selected for elementID to
	// endpoint. It returns once the transfer has been initiated, not when it
	// has completed.
	UploadFiles(ctx context.Context, endpoint, folder, elementID, token string) error
	// SetElementAttribute sets an attribute on a UI element.
	SetElementAttribute(ctx context.Context, elementID, name, value string) error
}

// ConfirmPolicy bounds the listing poll that confirms an upload.
type ConfirmPolicy struct {
	Attempts int
	Delay    time.Duration
	// Sleep waits between attempts; it must return early with ctx.Err()
	// when ctx is done. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfirmPolicy polls five times, two seconds apart.
var DefaultConfirmPolicy = ConfirmPolicy{
	Attempts: 5,
	Delay:    2 * time.Second,
}

func (p ConfirmPolicy) normalize() ConfirmPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultConfirmPolicy.Attempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Sleep == nil {
		p.Sleep = httpx.Sleep
	}
	return p
}

// UploadFiles hands the upload to the configured transport and then polls the
// folder listing until every requested name is present or the attempts are
// exhausted. It returns "" when the upload is confirmed, otherwise the
// comma-separated names that never appeared. The element's progress
// indicators are hidden in every case.
func (c *Client) UploadFiles(ctx context.Context, req UploadRequest) (string, error) {
	if c == nil || c.backend == nil {
		return "", fmt.Errorf("files: client is nil")
	}
	if c.transport == nil {
		return "", ErrNoUploadTransport
	}
	if strings.TrimSpace(req.Folder) == "" {
		return "", fmt.Errorf("files: folder is required")
	}

	log := c.logger.With().
		Str("folder", req.Folder).
		Str("element_id", req.ElementID).
		Int("files", len(req.Files)).
		Logger()

	defer c.hideProgress(ctx, req.ElementID, log)

	endpoint := c.backend.UploadEndpoint()
	if err := c.transport.UploadFiles(ctx, endpoint, req.Folder, req.ElementID, req.AntiForgeryToken); err != nil {
		return "", fmt.Errorf("files: initiate upload: %w", err)
	}
	log.Debug().Str("endpoint", endpoint).Msg("upload initiated")

	missing, err := c.confirmUpload(ctx, req.Folder, req.Files, log)
	if err != nil {
		return "", err
	}
	return strings.Join(missing, ","), nil
}

// UploadFilesToFolderID is UploadFiles for a numeric folder id.
func (c *Client) UploadFilesToFolderID(ctx context.Context, folderID int, names []string, elementID, token string) (string, error) {
	return c.UploadFiles(ctx, UploadRequest{
		Folder:           strconv.Itoa(folderID),
		Files:            names,
		ElementID:        elementID,
		AntiForgeryToken: token,
	})
}

func (c *Client) confirmUpload(ctx context.Context, folder string, names []string, log zerolog.Logger) ([]string, error) {
	var missing []string
	for attempt := 1; attempt <= c.confirm.Attempts; attempt++ {
		if err := c.confirm.Sleep(ctx, c.confirm.Delay); err != nil {
			return nil, fmt.Errorf("files: confirm upload: %w", err)
		}

		listing, err := c.ListByFolder(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("files: confirm upload: %w", err)
		}

		missing = missingNames(listing, names)
		if len(listing) > 0 && len(missing) == 0 {
			log.Debug().Int("attempt", attempt).Msg("upload confirmed")
			return nil, nil
		}
		log.Debug().Int("attempt", attempt).Strs("missing", missing).Msg("upload not visible yet")
	}

	log.Warn().Int("attempts", c.confirm.Attempts).Strs("missing", missing).Msg("upload not confirmed")
	return missing, nil
}

// hideProgress runs even when ctx has been cancelled so the indicators never
// stay visible after the call returns.
func (c *Client) hideProgress(ctx context.Context, elementID string, log zerolog.Logger) {
	hideCtx := context.WithoutCancel(ctx)
	for _, id := range []string{elementID + progressInfoSuffix, elementID + progressBarSuffix} {
		if err := c.transport.SetElementAttribute(hideCtx, id, styleAttribute, hiddenStyle); err != nil {
			log.Warn().Err(err).Str("element", id).Msg("hide progress element")
		}
	}
}

// missingNames returns the requested names absent from listing, in request
// order and without duplicates.
func missingNames(listing []File, names []string) []string {
	present := make(map[string]struct{}, len(listing))
	for _, f := range listing {
		present[f.Name] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
