package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sitekit/files_sdk_go/internal/sandbox"
	"github.com/sitekit/files_sdk_go/pkg/files_sdk"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("files-sandbox failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr    string
		prefix  string
		seed    string
		token   string
		fail    string
		latency time.Duration
		debug   bool
	)
	cmd := &cobra.Command{
		Use:           "files-sandbox",
		Short:         "Serve the File API from an in-memory store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			failCfg, err := sandbox.ParseFailConfig(fail)
			if err != nil {
				return fmt.Errorf("parse --fail: %w", err)
			}
			store, err := files_sdk.NewSeededMock(seed)
			if err != nil {
				return err
			}
			for _, f := range store.Folders() {
				log.Debug().Int("folder_id", f.FolderID).Int("site_id", f.SiteID).Str("path", f.Path).Msg("folder")
			}

			srv := sandbox.New(store, sandbox.Config{
				Prefix:  prefix,
				Latency: latency,
				Fail:    failCfg,
				Token:   token,
				Logger:  log.Logger,
			})
			server := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			host := addr
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			apiURL := "http://" + host + "/" + strings.Trim(prefix, "/")
			log.Info().Str("addr", addr).Str("api_url", apiURL).Msg("files-sandbox listening")
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "export FILES_RUNTIME_MODE=http")
			fmt.Fprintf(cmd.OutOrStdout(), "export FILES_API_URL=%s\n", apiURL)
			fmt.Fprintln(cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8787", "listen address")
	flags.StringVar(&prefix, "prefix", "/api", "path the File API is mounted under")
	flags.StringVar(&seed, "seed", "", "JSON or YAML seed file")
	flags.StringVar(&token, "token", "", "antiforgery token required for multipart uploads")
	flags.StringVar(&fail, "fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flags.DurationVar(&latency, "latency", 0, "artificial latency per request")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}
