// Package app wires configuration, logging and the plugin manager together
// for the command line.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/plughost/internal/adapters/logging"
	"github.com/felixgeelhaar/plughost/internal/domain/config"
	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
	"github.com/felixgeelhaar/plughost/internal/ports"
)

// HostOptions collects command line overrides. Nil pointers and empty
// strings keep the configuration file value.
type HostOptions struct {
	ConfigPath   string
	Directory    string
	Recursive    *bool
	AcceptedType string
	AllowSimilar *bool
	Isolated     *bool
	Verbose      bool
	LogFormat    string
	LogOutput    io.Writer
	Factories    plugin.Factories
}

// Host owns a configured plugin manager and its logger.
type Host struct {
	config  *config.File
	logger  ports.Logger
	manager *plugin.Manager
}

// NewHost loads the configuration, applies overrides and builds the manager.
func NewHost(opts HostOptions) (*Host, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	applyOverrides(cfg, opts)
	cfg.Directory = ports.ExpandPath(cfg.Directory)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, opts.LogOutput)
	if err != nil {
		return nil, err
	}

	managerOpts := append(cfg.Options(), plugin.WithLogger(logger))
	if len(opts.Factories) > 0 {
		managerOpts = append(managerOpts, plugin.WithFactories(opts.Factories))
	}

	return &Host{
		config:  cfg,
		logger:  logger,
		manager: plugin.NewManager(managerOpts...),
	}, nil
}

// Config returns the effective configuration.
func (h *Host) Config() *config.File {
	return h.config
}

// Logger returns the host logger.
func (h *Host) Logger() ports.Logger {
	return h.logger
}

// Manager returns the plugin manager.
func (h *Host) Manager() *plugin.Manager {
	return h.manager
}

// FileFilter returns the candidate filter the manager scans with, so
// watch mode reacts to the same files.
func (h *Host) FileFilter() plugin.FileFilter {
	return plugin.ExtensionFilter(h.config.Extensions...)
}

// Check runs one plugin check of the configured directory.
func (h *Host) Check(ctx context.Context) (*plugin.CheckResult, error) {
	if h.config.Directory == "" {
		return nil, fmt.Errorf("no plugins directory configured")
	}
	return h.manager.CheckPlugins(ctx)
}

// Close releases the manager.
func (h *Host) Close(ctx context.Context) error {
	return h.manager.Close(ctx)
}

func applyOverrides(cfg *config.File, opts HostOptions) {
	if opts.Directory != "" {
		cfg.Directory = opts.Directory
	}
	if opts.Recursive != nil {
		recursive := *opts.Recursive
		cfg.Recursive = &recursive
	}
	if opts.AcceptedType != "" {
		cfg.AcceptedType = opts.AcceptedType
	}
	if opts.AllowSimilar != nil {
		cfg.AllowSimilar = *opts.AllowSimilar
	}
	if opts.Isolated != nil {
		cfg.NewLoaderPerPlugin = *opts.Isolated
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
}

func newLogger(cfg *config.File, out io.Writer) (ports.Logger, error) {
	level, err := ports.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(out),
		logging.WithLevel(level),
		logging.WithFormat(format),
	), nil
}
