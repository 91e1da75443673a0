package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soypete/mockinterview/pkg/database"
	"github.com/soypete/mockinterview/pkg/httpbridge"
	"github.com/soypete/mockinterview/pkg/transcribe"
)

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Routes:
  POST /interview/transcribe   multipart field "audio", optional form value "language"
  GET  /api/health             engine and database status
  GET  /api/transcriptions     recent runs (?limit=N)
  GET  /metrics                Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := runChecks(cfg, cmd.OutOrStdout()); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger := newLogger(cmd.ErrOrStderr())

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			var history httpbridge.History
			if store != nil {
				defer store.Close()
				history = store
			}

			tr, err := newTranscriber(cfg, store, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "🚀 mockinterview v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "📡 Listening on http://%s\n", cfg.Addr())

			return httpbridge.NewServer(cfg, tr, history, logger).Run(ctx, cfg.Addr())
		},
	}
}

func transcribeCmd() *cobra.Command {
	var language, mimeType string
	var record bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one local audio file",
		Long: `Run one transcription over a copy of a local audio file and print the
outcome body as JSON. The original file is never modified.

Exit status is non-zero unless the engine returned a successful result.

Examples:
  mockinterview transcribe answer.webm
  mockinterview transcribe recording --mime audio/ogg --language es`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger := newLogger(cmd.ErrOrStderr())

			var store *database.Store
			if record {
				store, err = openStore(ctx, cfg)
				if err != nil {
					return err
				}
				if store != nil {
					defer store.Close()
				}
			}

			tr, err := newTranscriber(cfg, store, logger)
			if err != nil {
				return err
			}

			src, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open audio file: %w", err)
			}
			defer src.Close()

			path, err := transcribe.SpoolUpload(cfg.Upload.Dir, src)
			if err != nil {
				return err
			}

			outcome := tr.Transcribe(ctx, transcribe.Upload{
				TempPath:     path,
				MimeType:     mimeType,
				OriginalName: filepath.Base(args[0]),
				Language:     language,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome.Body()); err != nil {
				return fmt.Errorf("failed to write outcome: %w", err)
			}

			return outcome.Err()
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Language tag passed to the engine (default from config)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type used when the file name has no extension")
	cmd.Flags().BoolVar(&record, "record", false, "Record the run in the history database")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the transcription engine setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Init.SkipChecks = false
			cfg.Init.Verbose = true

			return runChecks(cfg, cmd.OutOrStdout())
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transcription runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Disabled {
				return fmt.Errorf("run history is disabled in config")
			}

			ctx, cancel := signalContext()
			defer cancel()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcription runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tKIND\tCODE\tLANG\tEXIT\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					run.CreatedAt.Local().Format(time.DateTime),
					run.Kind,
					dash(run.Code),
					run.Language,
					run.ExitCode,
					run.Duration.Round(time.Millisecond),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
