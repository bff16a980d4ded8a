package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitekit/files_sdk_go/internal/httpx"
	"github.com/sitekit/files_sdk_go/pkg/files"
)

func newUploadCommand(a *app) *cobra.Command {
	var (
		folderID  int
		folder    string
		elementID string
	)
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload local files and wait until they appear in the folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("folder-id") {
				folder = strconv.Itoa(folderID)
			}
			if folder == "" {
				return fmt.Errorf("one of --folder-id or --folder is required")
			}

			a.transport.Stage(elementID, args...)
			names := a.transport.Staged(elementID)
			a.uploadElement = elementID

			missing, err := a.client.UploadFiles(commandContext(cmd), files.UploadRequest{
				Folder:           folder,
				Files:            names,
				ElementID:        elementID,
				AntiForgeryToken: a.cfg.AntiForgeryToken,
			})
			if err != nil {
				return err
			}
			if transferErr := a.transport.Wait(commandContext(cmd), elementID); transferErr != nil {
				a.logger.Warn().Err(transferErr).Msg("transfer reported errors")
			}
			if missing != "" {
				return fmt.Errorf("upload not confirmed, missing: %s", missing)
			}
			a.logger.Info().Strs("files", names).Str("folder", folder).Msg("upload confirmed")
			return nil
		},
	}
	cmd.Flags().IntVar(&folderID, "folder-id", 0, "destination folder id")
	cmd.Flags().StringVar(&folder, "folder", "", "destination folder identifier")
	cmd.Flags().StringVar(&elementID, "element-id", "upload", "progress element id")
	cmd.MarkFlagsMutuallyExclusive("folder-id", "folder")
	return cmd
}

// confirmSleep starts each confirmation attempt once the running transfer
// has ended, so the delay only covers server-side processing.
func (a *app) confirmSleep(ctx context.Context, d time.Duration) error {
	if a.uploadElement != "" {
		if err := a.transport.Wait(ctx, a.uploadElement); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return httpx.Sleep(ctx, d)
}
