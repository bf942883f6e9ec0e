package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/domain/config"
	"github.com/felixgeelhaar/plughost/internal/testutil"
)

func TestCheckCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"recursive":     "true",
		"type":          "",
		"allow-similar": "false",
		"isolated":      "false",
	} {
		for _, cmd := range []string{"check", "watch"} {
			c, _, err := rootCmd.Find([]string{cmd})
			require.NoError(t, err)
			flag := c.Flags().Lookup(name)
			require.NotNil(t, flag, "%s --%s", cmd, name)
			assert.Equal(t, def, flag.DefValue)
		}
	}
}

func TestCheckCommand_Report(t *testing.T) {
	dir := t.TempDir()
	writeWASMPlugin(t, dir, "answer-1.0.jar", "answer", "1.0")
	writeWASMPlugin(t, dir, "answer-2.0.jar", "answer", "2.0")
	testutil.NewArchive().
		WithDescriptor("", testutil.NewDescriptor("clock", "1.0", "com.example.Missing")).
		WriteTo(t, dir, "clock.jar")

	out, err := executeCommand(t, "check", dir)
	require.NoError(t, err)

	requireContainsAll(t, out,
		"Plugins in "+dir,
		"3 detected, 1 loaded, 2 failed",
		"Loaded", "answer@2.0",
		"Failed", "answer@1.0", "deprecated",
		"clock@1.0", "internal",
		"Init order", "answer",
	)
}

func TestCheckCommand_NotRecursive(t *testing.T) {
	dir := t.TempDir()
	writeWASMPlugin(t, filepath.Join(dir, "nested"), "answer.jar", "answer", "1.0")

	out, err := executeCommand(t, "check", dir, "--recursive=false")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugins found.")
}

func TestCheckCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeWASMPlugin(t, dir, "answer.jar", "answer", "1.0")
	cfg := testutil.WriteTempFile(t, t.TempDir(), "plughost.toml", []byte(
		"directory = \""+filepath.ToSlash(dir)+"\"\naccepted_type = \"server\"\n",
	))

	out, err := executeCommand(t, "check", "--config", cfg)
	require.NoError(t, err)
	requireContainsAll(t, out, "0 loaded, 1 failed", "wrong type")

	out, err = executeCommand(t, "check", "--config", cfg, "--allow-similar")
	require.NoError(t, err)
	assert.Contains(t, out, "0 loaded, 1 failed")
}

func TestCheckCommand_Errors(t *testing.T) {
	_, err := executeCommand(t, "check")
	assert.EqualError(t, err, "no plugins directory configured")

	_, err = executeCommand(t, "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, config.IsUserError(err, config.ErrCodeConfigNotFound))

	_, err = executeCommand(t, "check", t.TempDir(), "--log-format", "xml")
	assert.Error(t, err)
}
