// Package config loads pipeworks settings from YAML. Every field has a
// default, so an empty or missing file yields a usable configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chazu/pipeworks/pkg/csg"
)

var validate = validator.New()

// Config is the top-level settings document.
type Config struct {
	// Catalog is a YAML catalog path; empty selects the built-in catalog.
	Catalog string  `yaml:"catalog"`
	Assets  Assets  `yaml:"assets"`
	Mesh    Mesh    `yaml:"mesh"`
	Worker  Worker  `yaml:"worker"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Assets controls where model files are resolved from.
type Assets struct {
	BaseDir string `yaml:"base_dir"`
}

// Mesh selects the geometry kernel and its tessellation resolution.
type Mesh struct {
	Kernel   string  `yaml:"kernel" validate:"oneof=sdfx manifold"`
	Cells    int     `yaml:"cells" validate:"gte=8,lte=1024"`
	CellSize float64 `yaml:"cell_size" validate:"gt=0"`
	MinCells int     `yaml:"min_cells" validate:"gte=8"`
	MaxCells int     `yaml:"max_cells" validate:"gtefield=MinCells"`
}

// Resolution returns the boolean-geometry resolution for these settings.
func (m Mesh) Resolution() csg.Resolution {
	return csg.Resolution{CellSize: m.CellSize, Min: m.MinCells, Max: m.MaxCells}
}

// Worker bounds background geometry jobs.
type Worker struct {
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Buffer  int           `yaml:"buffer" validate:"gte=1"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Assets: Assets{BaseDir: "."},
		Mesh: Mesh{
			Kernel:   "sdfx",
			Cells:    200,
			CellSize: csg.DefaultResolution.CellSize,
			MinCells: csg.DefaultResolution.Min,
			MaxCells: csg.DefaultResolution.Max,
		},
		Worker: Worker{Timeout: 2 * time.Minute, Buffer: 16},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SlogLevel converts the configured level name to a slog level.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w in the configured format.
func NewLogger(l Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
