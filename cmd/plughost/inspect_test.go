package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/testutil"
)

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.NewArchive().
		WithDescriptor("", testutil.NewDescriptor("clock", "1.2", "com.example.Clock").
			WithType("client").
			WithTitle("Clock").
			WithLibrary("gson", "2.8", "libs/gson.jar").
			WithInitialization("*", "before")).
		WithFile("logo.png", testutil.LogoPNG(t)).
		WriteTo(t, dir, "clock.jar")

	out, err := executeCommand(t, "inspect", path)
	require.NoError(t, err)

	requireContainsAll(t, out,
		"clock", "1.2", "client", "com.example.Clock",
		"Libraries", "libs/gson.jar",
		"Strategy", "Logo",
	)
}

func TestInspectCommand_NotPlugin(t *testing.T) {
	path := testutil.NewArchive().WithFile("readme.txt", []byte("hi")).WriteTo(t, t.TempDir(), "x.jar")

	_, err := executeCommand(t, "inspect", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no plugin.xml entry")

	_, err = executeCommand(t, "inspect", filepath.Join(t.TempDir(), "missing.jar"))
	assert.Error(t, err)

	_, err = executeCommand(t, "inspect")
	assert.Error(t, err)
}

func TestInspectCommand_ConfigEntryNames(t *testing.T) {
	dir := t.TempDir()
	path := testutil.NewArchive().
		WithFile("plugin.yaml", testutil.NewDescriptor("notes", "0.3", "com.example.Notes").WithTitle("Notes").YAML()).
		WriteTo(t, dir, "notes.plugin")
	cfg := testutil.WriteTempFile(t, t.TempDir(), "plughost.yaml", []byte("descriptorFile: plugin.yaml\n"))

	out, err := executeCommand(t, "inspect", "--config", cfg, path)
	require.NoError(t, err)
	requireContainsAll(t, out, "notes", "0.3", "com.example.Notes")

	_, err = executeCommand(t, "inspect", "--config", cfg, "--descriptor", "plugin.xml", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no plugin.xml entry")
}
