// Package config loads plugin manager settings from YAML, TOML or INI files
// and maps them onto manager options.
package config

import (
	"path"
	"slices"
	"strings"

	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
	"github.com/felixgeelhaar/plughost/internal/ports"
)

// File is the on-disk manager configuration.
type File struct {
	// Directory is the plugins directory.
	Directory string `yaml:"directory" toml:"directory"`
	// Recursive defaults to true when unset.
	Recursive *bool `yaml:"recursive" toml:"recursive"`
	// Extensions replaces the default .jar/.plugin candidate filter.
	Extensions   []string `yaml:"extensions" toml:"extensions"`
	AcceptedType string   `yaml:"acceptedType" toml:"accepted_type"`
	AllowSimilar bool     `yaml:"allowSimilar" toml:"allow_similar"`
	// NewLoaderPerPlugin gives every plugin an isolated entry context.
	NewLoaderPerPlugin bool   `yaml:"newLoaderPerPlugin" toml:"new_loader_per_plugin"`
	DescriptorFile     string `yaml:"descriptorFile" toml:"descriptor_file"`
	LogoFile           string `yaml:"logoFile" toml:"logo_file"`
	// Include and Exclude are plugin id patterns (path.Match syntax).
	Include   []string `yaml:"include" toml:"include"`
	Exclude   []string `yaml:"exclude" toml:"exclude"`
	LogLevel  string   `yaml:"logLevel" toml:"log_level"`
	LogFormat string   `yaml:"logFormat" toml:"log_format"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	recursive := true
	return &File{Recursive: &recursive}
}

// IsRecursive reports the effective recursive setting.
func (f *File) IsRecursive() bool {
	return f.Recursive == nil || *f.Recursive
}

// Validate checks patterns and the logging settings.
func (f *File) Validate() error {
	errs := NewErrorList()

	for _, field := range []struct {
		name     string
		patterns []string
	}{{"include", f.Include}, {"exclude", f.Exclude}} {
		for _, p := range field.patterns {
			if _, err := path.Match(p, ""); err != nil {
				errs.AddValidation(field.name, "invalid pattern "+p, "Use * and ? wildcards, e.g. clock-*.")
			}
		}
	}

	if _, err := ports.ParseLevel(f.LogLevel); err != nil {
		errs.AddValidation("logLevel", err.Error(), "Use debug, info, warn or error.")
	}

	switch strings.ToLower(f.LogFormat) {
	case "", "text", "json":
	default:
		errs.AddValidation("logFormat", "unknown log format "+f.LogFormat, "Use text or json.")
	}

	return errs.AsError()
}

// Filter returns the include/exclude filter, nil when neither is set.
func (f *File) Filter() plugin.Filter {
	if len(f.Include) == 0 && len(f.Exclude) == 0 {
		return nil
	}
	include := slices.Clone(f.Include)
	exclude := slices.Clone(f.Exclude)

	return func(d *plugin.Detected) bool {
		id := d.Info.ID
		if len(include) > 0 && !matchAny(include, id) {
			return false
		}
		return !matchAny(exclude, id)
	}
}

// Options converts the configuration into manager options.
func (f *File) Options() []plugin.Option {
	opts := []plugin.Option{
		plugin.WithDirectory(f.Directory),
		plugin.WithRecursive(f.IsRecursive()),
		plugin.WithAllowSimilar(f.AllowSimilar),
		plugin.WithNewLoaderPerPlugin(f.NewLoaderPerPlugin),
	}
	if len(f.Extensions) > 0 {
		opts = append(opts, plugin.WithFileFilter(plugin.ExtensionFilter(f.Extensions...)))
	}
	if f.AcceptedType != "" {
		opts = append(opts, plugin.WithAcceptedType(f.AcceptedType))
	}
	if f.DescriptorFile != "" {
		opts = append(opts, plugin.WithDescriptorFile(f.DescriptorFile))
	}
	if f.LogoFile != "" {
		opts = append(opts, plugin.WithLogoFile(f.LogoFile))
	}
	if filter := f.Filter(); filter != nil {
		opts = append(opts, plugin.WithFilter(filter))
	}
	return opts
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, id); ok {
			return true
		}
	}
	return false
}
