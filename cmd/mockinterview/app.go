package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/soypete/mockinterview/pkg/config"
	"github.com/soypete/mockinterview/pkg/database"
	depcheck "github.com/soypete/mockinterview/pkg/init"
	"github.com/soypete/mockinterview/pkg/transcribe"
)

// loadConfig reads --config, else the default locations, else built-in defaults
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
		if errors.Is(err, config.ErrNoConfigFile) {
			cfg, err = config.Default()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if verbose {
		cfg.Init.Verbose = true
		cfg.Debug.LogLevel = "debug"
	}
	if skipChecks {
		cfg.Init.SkipChecks = true
	}

	return cfg, nil
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.LstdFlags)
}

// runChecks runs the dependency checker unless skipped
func runChecks(cfg *config.Config, out io.Writer) error {
	if cfg.Init.SkipChecks {
		return nil
	}

	results, err := depcheck.NewChecker(cfg).CheckAll()
	if err != nil {
		return err
	}

	if cfg.Init.Verbose {
		fmt.Fprintln(out, "✓ All dependencies OK")
		for _, result := range results {
			if result.Found {
				fmt.Fprintf(out, "  ✓ %s: %s %s\n", result.Name, result.Path, result.Version)
			}
		}
	}
	return nil
}

// openStore opens run history, or returns nil when it is disabled
func openStore(ctx context.Context, cfg *config.Config) (*database.Store, error) {
	if cfg.Database.Disabled {
		return nil, nil
	}

	store, err := database.Open(ctx, database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

// newTranscriber builds the pipeline from config. store may be nil.
func newTranscriber(cfg *config.Config, store *database.Store, logger *log.Logger) (*transcribe.Transcriber, error) {
	opts := transcribe.Options{
		Executable:      cfg.Engine.Executable,
		EntryPoint:      cfg.Engine.EntryPoint,
		WorkDir:         cfg.Engine.WorkDir,
		Timeout:         cfg.EngineTimeout(),
		ResponseSchema:  cfg.Engine.ResponseSchema,
		DefaultLanguage: cfg.Engine.DefaultLanguage,
		Logger:          logger,
		Debug:           cfg.Debug.LogLevel == "debug",
	}
	// A nil *Store must not become a non-nil Recorder.
	if store != nil {
		opts.Recorder = store
	}
	return transcribe.NewTranscriber(opts)
}
