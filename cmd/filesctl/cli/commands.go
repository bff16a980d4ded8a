package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitekit/files_sdk_go/pkg/files"
)

func newListCommand(a *app) *cobra.Command {
	var (
		folderID int
		folder   string
		path     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the files of a folder",
		Long: `List the files of a folder, sorted by name. Address the folder with exactly one
of --folder-id, --folder or --path (resolved within --site-id).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			var (
				list []files.File
				err  error
			)
			switch {
			case cmd.Flags().Changed("folder-id"):
				list, err = a.client.ListByFolderID(ctx, folderID)
			case folder != "":
				list, err = a.client.ListByFolder(ctx, folder)
			case cmd.Flags().Changed("path"):
				list, err = a.client.ListByPath(ctx, a.cfg.SiteID, path)
			default:
				return fmt.Errorf("one of --folder-id, --folder or --path is required")
			}
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().IntVar(&folderID, "folder-id", 0, "numeric folder id")
	cmd.Flags().StringVar(&folder, "folder", "", "folder identifier understood by the server")
	cmd.Flags().StringVar(&path, "path", "", "folder path within the site")
	cmd.MarkFlagsMutuallyExclusive("folder-id", "folder", "path")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <file-id>",
		Short: "Show a file record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err := a.client.Get(commandContext(cmd), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec)
		},
	}
}

func newAddCommand(a *app) *cobra.Command {
	var rec files.File
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a file record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rec.Name == "" {
				return fmt.Errorf("--name is required")
			}
			created, err := a.client.Add(commandContext(cmd), &rec)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().IntVar(&rec.FolderID, "folder-id", 0, "folder that holds the record")
	cmd.Flags().StringVar(&rec.Name, "name", "", "file name")
	cmd.Flags().StringVar(&rec.Description, "description", "", "description")
	cmd.Flags().Int64Var(&rec.Size, "size", 0, "size in bytes")
	_ = cmd.MarkFlagRequired("folder-id")
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		folderID    int
		name        string
		description string
	)
	cmd := &cobra.Command{
		Use:   "update <file-id>",
		Short: "Change the name, folder or description of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			rec, err := a.client.Get(ctx, id)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("folder-id") {
				rec.FolderID = folderID
			}
			if cmd.Flags().Changed("name") {
				rec.Name = name
			}
			if cmd.Flags().Changed("description") {
				rec.Description = description
			}
			updated, err := a.client.Update(ctx, rec)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().IntVar(&folderID, "folder-id", 0, "move the file to this folder")
	cmd.Flags().StringVar(&name, "name", "", "new file name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.Delete(commandContext(cmd), id); err != nil {
				return err
			}
			a.logger.Info().Int("file_id", id).Msg("deleted")
			return nil
		},
	}
}

func newDownloadCommand(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Write the contents of a file to stdout or --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := a.client.DownloadTo(commandContext(cmd), id, w)
			if err != nil {
				return err
			}
			a.logger.Debug().Int("file_id", id).Int64("bytes", n).Msg("downloaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "destination file")
	return cmd
}

func newFetchURLCommand(a *app) *cobra.Command {
	var (
		folderID int
		name     string
	)
	cmd := &cobra.Command{
		Use:   "fetch-url <url>",
		Short: "Ask the server to download a remote URL into a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.client.UploadFromURL(commandContext(cmd), args[0], folderID, name)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().IntVar(&folderID, "folder-id", 0, "destination folder")
	cmd.Flags().StringVar(&name, "name", "", "stored file name (defaults to the URL's last segment)")
	_ = cmd.MarkFlagRequired("folder-id")
	return cmd
}
