// Package cmd provides the CLI commands for convdex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/convsearch/convdex/internal/config"
	"github.com/convsearch/convdex/internal/history"
	"github.com/convsearch/convdex/internal/lifecycle"
	"github.com/convsearch/convdex/internal/logging"
	"github.com/convsearch/convdex/internal/registry"
	"github.com/convsearch/convdex/internal/storage"
	"github.com/convsearch/convdex/pkg/version"
)

// Persistent flags shared by all subcommands.
var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the convdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convdex",
		Short: "Index lifecycle manager for conversational search datasets",
		Long: `convdex manages on-disk retrieval indexes for conversational
search datasets: wiki passage collections and multi-turn dialogue
corpora. Datasets are declared once in convdex.yaml; builds are
validated, staged, and published atomically.

Run 'convdex ensure <dataset>' to bring an index up to date.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("convdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newDatasetsCmd())
	cmd.AddCommand(newEnsureCmd())
	cmd.AddCommand(newInvalidateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg.Level = "debug"
	}

	// The config file's logging section applies when the file loads;
	// command-level errors before that still get default logging.
	if cfg, err := config.Load(configPath); err == nil {
		if cfg.Logging.Level != "" && !debugMode {
			logCfg.Level = cfg.Logging.Level
		}
		if cfg.Logging.File != "" {
			logCfg.FilePath = cfg.Logging.File
		}
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// app bundles the wired collaborators behind every subcommand.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	storage  *storage.DirManager
	manager  *lifecycle.Manager
	history  *history.Store
}

// newApp loads the config and wires the registry, storage manager,
// builder, history store, and lifecycle manager.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	store, err := storage.NewDirManager(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, desc := range cfg.Descriptors() {
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}

	histPath := cfg.HistoryPath()
	if err := os.MkdirAll(filepath.Dir(histPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	hist, err := history.Open(histPath)
	if err != nil {
		return nil, err
	}

	mgr := lifecycle.NewManager(lifecycle.Config{
		Registry:            reg,
		Storage:             store,
		Builder:             cfg.NewBuilder(),
		Params:              cfg.Params(),
		History:             hist,
		MaxConcurrentBuilds: cfg.MaxConcurrentBuilds,
	})

	return &app{
		cfg:      cfg,
		registry: reg,
		storage:  store,
		manager:  mgr,
		history:  hist,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.history != nil {
		_ = a.history.Close()
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
