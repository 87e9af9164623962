// Package config loads the convdex configuration: the storage root,
// builder settings, and the declarative dataset list the registry is
// seeded from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/convsearch/convdex/internal/builder"
	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

// DefaultFileName is the config file looked up in the working
// directory when no --config flag is given.
const DefaultFileName = "convdex.yaml"

// Config is the complete convdex configuration.
type Config struct {
	Version int           `yaml:"version"`
	Storage StorageConfig `yaml:"storage"`
	Builder BuilderConfig `yaml:"builder"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`

	// MaxConcurrentBuilds bounds cross-dataset build parallelism.
	MaxConcurrentBuilds int64 `yaml:"max_concurrent_builds"`

	Datasets []DatasetConfig `yaml:"datasets"`
}

// StorageConfig locates the shared storage tree.
type StorageConfig struct {
	// Root is the storage root all relative dataset paths resolve
	// against.
	Root string `yaml:"root"`
}

// BuilderConfig selects and tunes the index builder.
type BuilderConfig struct {
	// Backend is "exec" (external CLI) or "bleve" (embedded).
	Backend string `yaml:"backend"`
	// Binary is the external builder executable (exec backend only).
	Binary string `yaml:"binary"`
	// ExtraArgs are fixed arguments passed before the generated flags.
	ExtraArgs []string `yaml:"extra_args"`

	Threads         int  `yaml:"threads"`
	StorePositions  bool `yaml:"store_positions"`
	StoreDocVectors bool `yaml:"store_doc_vectors"`
	StoreRaw        bool `yaml:"store_raw"`
}

// WatchConfig configures the opt-in corpus watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File is the log file path; empty disables file logging.
	File string `yaml:"file"`
}

// HistoryConfig configures the build history store.
type HistoryConfig struct {
	// Path is the SQLite database location. Empty means
	// <storage root>/.convdex/history.db.
	Path string `yaml:"path"`
}

// DatasetConfig is one dataset entry.
type DatasetConfig struct {
	Name      string            `yaml:"name"`
	Family    string            `yaml:"family"`
	Adapter   string            `yaml:"adapter"`
	RawPath   string            `yaml:"raw_path"`
	IndexPath string            `yaml:"index_path"`
	Schema    map[string]string `yaml:"schema"`
	// Params optionally overrides the global build settings for this
	// dataset.
	Params *builder.Params `yaml:"params"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Version: 1,
		Builder: BuilderConfig{
			Backend:         "exec",
			Threads:         runtime.NumCPU(),
			StorePositions:  true,
			StoreDocVectors: true,
			StoreRaw:        true,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		MaxConcurrentBuilds: 2,
	}
}

// Load reads the config file at path, applies CONVDEX_* environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config %s: %v", path, err), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse config %s: %v", path, err), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies CONVDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONVDEX_STORAGE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("CONVDEX_BUILDER_BACKEND"); v != "" {
		c.Builder.Backend = v
	}
	if v := os.Getenv("CONVDEX_BUILDER_BINARY"); v != "" {
		c.Builder.Binary = v
	}
	if v := os.Getenv("CONVDEX_BUILDER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Builder.Threads = n
		}
	}
	if v := os.Getenv("CONVDEX_MAX_CONCURRENT_BUILDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxConcurrentBuilds = n
		}
	}
	if v := os.Getenv("CONVDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "storage.root is required", nil)
	}

	switch c.Builder.Backend {
	case "exec":
		if c.Builder.Binary == "" {
			return errors.New(errors.ErrCodeConfigInvalid,
				"builder.binary is required for the exec backend", nil)
		}
	case "bleve":
		// embedded, nothing else to check
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown builder.backend %q (want exec or bleve)", c.Builder.Backend), nil)
	}

	if c.Builder.Threads <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "builder.threads must be positive", nil)
	}

	seen := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		if d.Name == "" {
			return errors.New(errors.ErrCodeConfigInvalid, "dataset with empty name", nil)
		}
		if seen[d.Name] {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("dataset %q listed twice", d.Name), nil)
		}
		seen[d.Name] = true

		switch registry.Family(d.Family) {
		case registry.FamilyConversational, registry.FamilyPassage:
		default:
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("dataset %q has unknown family %q", d.Name, d.Family), nil)
		}
		if d.RawPath == "" || d.IndexPath == "" {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("dataset %q needs raw_path and index_path", d.Name), nil)
		}
		for field, ft := range d.Schema {
			switch registry.FieldType(ft) {
			case registry.FieldTypeID, registry.FieldTypeText, registry.FieldTypeMeta:
			default:
				return errors.New(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("dataset %q schema field %q has unknown type %q", d.Name, field, ft), nil)
			}
		}
	}
	return nil
}

// Descriptors converts the dataset entries into registry descriptors,
// preserving file order.
func (c *Config) Descriptors() []registry.Descriptor {
	out := make([]registry.Descriptor, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		schema := make(map[string]registry.FieldType, len(d.Schema))
		for field, ft := range d.Schema {
			schema[field] = registry.FieldType(ft)
		}
		out = append(out, registry.Descriptor{
			Name:        d.Name,
			Family:      registry.Family(d.Family),
			RawPath:     d.RawPath,
			IndexPath:   d.IndexPath,
			Schema:      schema,
			AdapterKind: d.Adapter,
		})
	}
	return out
}

// Params returns the global build params derived from the builder
// section.
func (c *Config) Params() builder.Params {
	return builder.Params{
		Backend:         c.Builder.Backend,
		Threads:         c.Builder.Threads,
		StorePositions:  c.Builder.StorePositions,
		StoreDocVectors: c.Builder.StoreDocVectors,
		StoreRaw:        c.Builder.StoreRaw,
	}
}

// DatasetParams returns the effective build params for a dataset,
// applying its per-dataset override if present.
func (c *Config) DatasetParams(name string) builder.Params {
	for _, d := range c.Datasets {
		if d.Name == name && d.Params != nil {
			return *d.Params
		}
	}
	return c.Params()
}

// NewBuilder constructs the configured builder backend.
func (c *Config) NewBuilder() builder.Builder {
	if c.Builder.Backend == "bleve" {
		return builder.NewBleveBuilder()
	}
	return builder.NewExecBuilder(c.Builder.Binary, c.Builder.ExtraArgs...)
}

// HistoryPath returns the effective build history location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Storage.Root, ".convdex", "history.db")
}
