package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
	"github.com/felixgeelhaar/plughost/internal/testutil"
)

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs([]string{})
		cfgFile, verbose, logFormat = "", false, ""
		checkRecursive, checkType, checkAllowSimilar, checkIsolated = true, "", false, false
		inspectDescriptor, inspectLogo = plugin.DefaultDescriptorFile, plugin.DefaultLogoFile
		for _, c := range []*cobra.Command{checkCmd, watchCmd, inspectCmd} {
			c.Flags().Visit(func(f *pflag.Flag) { f.Changed = false })
		}
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// writeWASMPlugin writes an archive whose entry type is an exported
// WebAssembly module.
func writeWASMPlugin(t *testing.T, dir, file, id, version string) {
	t.Helper()

	testutil.NewArchive().
		WithDescriptor("", testutil.NewDescriptor(id, version, "com.example.Answer").WithTitle(id)).
		WithFile("com.example.Answer.wasm", testutil.AnswerModule).
		WriteTo(t, dir, file)
}

func requireContainsAll(t *testing.T, s string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		require.Contains(t, s, p)
	}
}
