package plugin

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/plughost/internal/ports"
)

// DefaultExtensions are the archive extensions accepted by the default filter.
var DefaultExtensions = []string{".jar", ".plugin"}

// FileFilter decides whether a file name is a plugin candidate.
type FileFilter func(name string) bool

// ExtensionFilter accepts names ending in one of exts, case-insensitively.
// With no extensions it falls back to DefaultExtensions.
func ExtensionFilter(exts ...string) FileFilter {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return func(name string) bool {
		lower := strings.ToLower(name)
		for _, ext := range normalized {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
		return false
	}
}

type sourceKey struct {
	dir  string
	file string
}

// Scanner discovers plugin archives. It remembers every (directory, file)
// pair it has detected so repeated scans only report new candidates.
// A Scanner is not safe for concurrent use; the Manager serializes scans.
type Scanner struct {
	reader *DescriptorReader
	filter FileFilter
	logger ports.Logger
	seen   map[sourceKey]struct{}
}

// NewScanner creates a scanner. Nil arguments select the defaults.
func NewScanner(reader *DescriptorReader, filter FileFilter, logger ports.Logger) *Scanner {
	if reader == nil {
		reader = NewDescriptorReader()
	}
	if filter == nil {
		filter = ExtensionFilter()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Scanner{
		reader: reader,
		filter: filter,
		logger: logger,
		seen:   make(map[sourceKey]struct{}),
	}
}

// Known reports whether dir/file was detected by an earlier scan.
func (s *Scanner) Known(dir, file string) bool {
	_, ok := s.seen[sourceKey{dir: filepath.Clean(dir), file: file}]
	return ok
}

// Scan lists candidates under root and returns the newly detected ones in
// lexical order: files of a directory first, then its subdirectories when
// recursive is set. Unreadable files are logged and omitted. The only
// error returned is the context's.
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool) ([]*Detected, error) {
	var found []*Detected
	err := s.scanDir(ctx, filepath.Clean(root), recursive, &found)
	return found, err
}

func (s *Scanner) scanDir(ctx context.Context, dir string, recursive bool, found *[]*Detected) error {
	logger := contextLogger(ctx, s.logger)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, "plugins directory does not exist", ports.F("dir", dir))
		} else {
			logger.Error(ctx, "unable to list plugins directory", ports.F("dir", dir), ports.Err(err))
		}
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			subdirs = append(subdirs, entry.Name())
			continue
		}
		if !s.filter(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d := s.scanFile(ctx, dir, entry.Name()); d != nil {
			*found = append(*found, d)
		}
	}

	if !recursive {
		return nil
	}
	for _, sub := range subdirs {
		if err := s.scanDir(ctx, filepath.Join(dir, sub), recursive, found); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanFile(ctx context.Context, dir, file string) *Detected {
	logger := contextLogger(ctx, s.logger)

	key := sourceKey{dir: dir, file: file}
	if _, ok := s.seen[key]; ok {
		return nil
	}

	path := filepath.Join(dir, file)
	info, logo, err := s.reader.Read(path)
	if err != nil {
		if IsNotPlugin(err) {
			logger.Debug(ctx, "skipping archive without descriptor", ports.F("file", path))
			return nil
		}
		logger.Warn(ctx, "unable to read plugin descriptor", ports.F("file", path), ports.Err(err))
		return nil
	}

	d, err := newDetected(dir, file, info, logo)
	if err != nil {
		logger.Error(ctx, "unable to track plugin", ports.F("file", path), ports.Err(err))
		return nil
	}

	s.seen[key] = struct{}{}
	logger.Info(ctx, "plugin detected", ports.F("plugin", info.String()), ports.F("file", path))
	return d
}
