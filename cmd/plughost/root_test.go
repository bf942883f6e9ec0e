package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/domain/config"
)

func TestRootCommand_UseLine(t *testing.T) {
	assert.Equal(t, "plughost", rootCmd.Use)
}

func TestRootCommand_HasPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	for name, def := range map[string]string{
		"config":     "",
		"verbose":    "false",
		"log-format": "",
	} {
		t.Run(name, func(t *testing.T) {
			flag := flags.Lookup(name)
			require.NotNil(t, flag)
			assert.Equal(t, def, flag.DefValue)
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"check", "inspect", "watch", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "plughost dev")
	assert.Contains(t, out, "commit: none")
}

func TestFormatError(t *testing.T) {
	underlying := errors.New("yaml: line 2: did not find expected key")
	err := config.NewYAMLParseError("plughost.yaml", underlying)

	msg := formatError(err)
	assert.Contains(t, msg, "(at plughost.yaml (line 2))")
	assert.Contains(t, msg, "Suggestion:")
	assert.NotContains(t, msg, "Technical details")

	verbose = true
	t.Cleanup(func() { verbose = false })
	assert.Contains(t, formatError(err), "Technical details: yaml: line 2")

	assert.Equal(t, "plain", formatError(errors.New("plain")))

	var buf bytes.Buffer
	printErrorTo(&buf, errors.New("plain"))
	assert.Equal(t, "Error: plain\n", buf.String())
}
