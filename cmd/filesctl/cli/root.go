package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sitekit/files_sdk_go/internal/config"
	"github.com/sitekit/files_sdk_go/pkg/files"
	"github.com/sitekit/files_sdk_go/pkg/files/transport"
	"github.com/sitekit/files_sdk_go/pkg/files_sdk"
)

const (
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger

	client        *files.Client
	transport     *transport.Multipart
	mode          string
	uploadElement string

	output     string
	configFile string
}

// NewRootCommand builds the filesctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "filesctl",
		Short: "Manage files of a site through the File API",
		Long: `filesctl lists, inspects, uploads and downloads files through the File API.
Settings come from flags, FILES_* environment variables, a .env file and an
optional filesctl.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "path to a config file")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json, yaml or table")
	flags.String("api-url", "", "File API base URL, e.g. https://site.example.com/api")
	flags.String("mode", "auto", "runtime mode: auto, http or mock")
	flags.String("seed", "", "seed file for mock mode")
	flags.Int("site-id", 1, "site id used by path listings")
	flags.Duration("timeout", 30*time.Second, "per-request timeout")
	flags.Int("retries", 2, "retries of transient HTTP failures")
	flags.String("token", "", "antiforgery token forwarded with uploads")
	flags.Int("poll-attempts", files.DefaultConfirmPolicy.Attempts, "upload confirmation attempts")
	flags.Duration("poll-delay", files.DefaultConfirmPolicy.Delay, "delay before each confirmation attempt")
	flags.Bool("debug", false, "enable debug logging")

	for key, flag := range map[string]string{
		"api_url":           "api-url",
		"mode":              "mode",
		"seed":              "seed",
		"site_id":           "site-id",
		"timeout":           "timeout",
		"retries":           "retries",
		"antiforgery_token": "token",
		"poll_attempts":     "poll-attempts",
		"poll_delay":        "poll-delay",
		"debug":             "debug",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newListCommand(a),
		newGetCommand(a),
		newAddCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newDownloadCommand(a),
		newFetchURLCommand(a),
		newUploadCommand(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().Timestamp().Str("component", "filesctl").
		Logger()

	a.transport = transport.NewMultipart(
		transport.WithLogger(a.logger),
		transport.WithOutput(cmd.ErrOrStderr()),
		transport.WithBaseURL(cfg.APIURL),
	)
	policy := cfg.ConfirmPolicy()
	policy.Sleep = a.confirmSleep
	opts := []files.Option{
		files.WithLogger(a.logger),
		files.WithUploadTransport(a.transport),
		files.WithConfirmPolicy(policy),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, files.WithTimeout(cfg.Timeout))
	}
	if cfg.Retries > 0 {
		opts = append(opts, files.WithRetryPolicy(cfg.Retries, retryBaseDelay, retryMaxDelay))
	}
	a.client, a.mode, err = files_sdk.New(cfg.Mode, cfg.APIURL, cfg.Seed, opts...)
	if err != nil {
		return err
	}
	a.logger.Debug().Str("mode", a.mode).Str("api_url", cfg.APIURL).Msg("client ready")
	return nil
}

func (a *app) print(w io.Writer, v any) error {
	switch a.output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		return printTable(w, v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", a.output)
	}
}

func printTable(w io.Writer, v any) error {
	var list []files.File
	switch t := v.(type) {
	case []files.File:
		list = t
	case *files.File:
		list = []files.File{*t}
	default:
		return fmt.Errorf("table output is not supported for %T", v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFOLDER\tNAME\tSIZE\tMODIFIED")
	for _, f := range list {
		modified := "-"
		if f.ModifiedOn != nil {
			modified = f.ModifiedOn.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", f.FileID, f.FolderID, f.Name, f.Size, modified)
	}
	return tw.Flush()
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", arg)
	}
	return id, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
