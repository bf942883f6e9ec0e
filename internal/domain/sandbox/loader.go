package sandbox

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocateModule searches a classpath for the entry module "<name>.wasm".
// A classpath element is either that module file itself or a zip archive
// containing it at any depth. The first match in classpath order wins.
// It returns the module bytes and a description of where they came from.
func LocateModule(classpath []string, name string, maxBytes int64) ([]byte, string, error) {
	want := name + ModuleExtension

	for _, element := range classpath {
		if strings.EqualFold(filepath.Ext(element), ModuleExtension) {
			if filepath.Base(element) != want {
				continue
			}
			data, err := readLimited(element, maxBytes)
			if err != nil {
				return nil, element, err
			}
			return data, element, nil
		}

		data, entry, err := readFromArchive(element, want, maxBytes)
		if err != nil {
			return nil, element, err
		}
		if data != nil {
			return data, element + "!" + entry, nil
		}
	}

	return nil, "", fmt.Errorf("%w: %s", ErrModuleNotFound, want)
}

func readFromArchive(archive, want string, maxBytes int64) ([]byte, string, error) {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrFormat) {
		// not an archive; nothing to search
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", archive, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || path.Base(f.Name) != want {
			continue
		}
		if maxBytes > 0 && int64(f.UncompressedSize64) > maxBytes {
			return nil, "", fmt.Errorf("%w: %s!%s", ErrModuleTooLarge, archive, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("opening %s!%s: %w", archive, f.Name, err)
		}
		data, err := readAll(rc, maxBytes)
		_ = rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("reading %s!%s: %w", archive, f.Name, err)
		}
		return data, f.Name, nil
	}

	return nil, "", nil
}

func readLimited(file string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readAll(f, maxBytes)
}

func readAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrModuleTooLarge
	}
	return data, nil
}
