package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plughost/internal/app"
	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a plugins directory and load new archives",
	Long: `Watch a plugins directory and run a plugin check whenever an archive is
added or replaced. Plugins that were already loaded stay loaded.

Debouncing prevents repeated checks while several files are copied.
The initial check can be skipped with --skip-initial.`,
	Example: `  # Watch the configured directory
  plughost watch --config plughost.yaml

  # Watch with custom debounce
  plughost watch ./plugins --debounce 1s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchDebounce    string
	watchSkipInitial bool
)

func init() {
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "500ms", "Debounce duration for file changes")
	watchCmd.Flags().BoolVar(&watchSkipInitial, "skip-initial", false, "Skip initial check on start")
	addManagerFlags(watchCmd)

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, err := time.ParseDuration(watchDebounce)
	if err != nil {
		return fmt.Errorf("invalid debounce duration: %w", err)
	}

	host, err := app.NewHost(managerOptions(cmd, args))
	if err != nil {
		return err
	}
	defer func() { _ = host.Close(context.Background()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	w := app.NewWatchMode(host.Manager(), host.Logger(), app.WatchOptions{
		Debounce:     debounce,
		CheckOnStart: !watchSkipInitial,
		FileFilter:   host.FileFilter(),
		OnCheck: func(result *plugin.CheckResult, err error) {
			if err != nil {
				printErrorTo(cmd.ErrOrStderr(), err)
				return
			}
			printCheckReport(out, result, host.Manager())
			_, _ = fmt.Fprintln(out)
		},
	})

	return w.Run(ctx)
}
