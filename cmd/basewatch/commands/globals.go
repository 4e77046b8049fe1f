// Package commands implements the basewatch subcommands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/config"
	"github.com/savegress/basewatch/internal/ingest"
	"github.com/savegress/basewatch/internal/logging"
	"github.com/savegress/basewatch/internal/plot"
	"github.com/savegress/basewatch/internal/storage"
)

const (
	configEnv     = "BASEWATCH_CONFIG"
	outputDirPerm = 0o750
)

// Globals holds state shared by every subcommand: the persistent flags and
// the config and logger built from them on first use.
type Globals struct {
	ConfigPath string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// Config loads the configuration from --config, then $BASEWATCH_CONFIG, then
// the environment alone.
func (g *Globals) Config() (*config.Config, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}

	path := g.ConfigPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if g.Verbose {
		cfg.Logging.Level = "debug"
	}

	g.cfg = cfg

	return cfg, nil
}

// Logger returns the process logger.
func (g *Globals) Logger() (*zap.Logger, error) {
	if g.logger != nil {
		return g.logger, nil
	}

	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	g.logger = logger

	return logger, nil
}

// Sync flushes the logger if one was built.
func (g *Globals) Sync() {
	if g.logger != nil {
		_ = g.logger.Sync()
	}
}

func (g *Globals) loadSamples(path string) ([]baseline.Sample, error) {
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	logger, err := g.Logger()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	samples, err := ingest.NewParser(ingest.WithLogger(logger), ingest.WithLocation(loc)).ParseFile(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("loaded samples", zap.String("path", path), zap.Int("count", len(samples)))

	return samples, nil
}

// buildBaseline builds a baseline over samples. A non-positive window uses the
// configured one.
func (g *Globals) buildBaseline(samples []baseline.Sample, window int) (*baseline.Baseline, error) {
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	logger, err := g.Logger()
	if err != nil {
		return nil, err
	}

	if window <= 0 {
		window = cfg.Baseline.WindowSize
	}

	b, err := baseline.New(samples, window, baseline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build baseline: %w", err)
	}

	return b, nil
}

// openStore opens the sample store at path, or the configured one when path
// is empty.
func (g *Globals) openStore(path string) (*storage.EmbeddedStorage, error) {
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	logger, err := g.Logger()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = cfg.Storage.Path
	}

	return storage.NewEmbeddedStorage(path, storage.WithLogger(logger), storage.WithLocation(loc))
}

func writePage(path string, page *plot.Page) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, outputDirPerm); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return err
	}

	return f.Close()
}
