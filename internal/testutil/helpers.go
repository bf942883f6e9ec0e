// Package testutil provides archive builders, wasm fixtures and file helpers
// for plughost tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// EmptyModule is the smallest valid WebAssembly module.
var EmptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// AnswerModule exports "answer", a function taking nothing and returning i32 42.
var AnswerModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: () -> i32
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
	// function section
	0x03, 0x02, 0x01, 0x00,
	// export section: "answer"
	0x07, 0x0a, 0x01, 0x06, 'a', 'n', 's', 'w', 'e', 'r', 0x00, 0x00,
	// code section: i32.const 42
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b,
}

// WriteTempFile writes content to dir/filename and returns the path.
func WriteTempFile(t testing.TB, dir, filename string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644), "failed to write temp file: %s", filename)

	return path
}

// WriteTempDir creates a subdirectory and returns its path.
func WriteTempDir(t testing.TB, dir, dirname string) string {
	t.Helper()

	path := filepath.Join(dir, dirname)
	require.NoError(t, os.MkdirAll(path, 0o755), "failed to create temp subdirectory: %s", dirname)

	return path
}

// LogoPNG returns a 2x2 PNG image.
func LogoPNG(t testing.TB) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 0x89, G: 0xb4, B: 0xfa, A: 0xff})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
