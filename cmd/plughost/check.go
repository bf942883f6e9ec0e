package main

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plughost/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Scan a directory and load the plugins it contains",
	Long: `Scan a plugins directory, read every archive's descriptor, reject
duplicates and deprecated versions, load the remaining plugins and print
their status and initialization order.

The directory argument overrides the directory from the config file.`,
	Example: `  # Check the configured directory
  plughost check --config plughost.yaml

  # Check a directory without descending into subdirectories
  plughost check ./plugins --recursive=false

  # Only load client plugins, each in its own entry context
  plughost check ./plugins --type client --isolated`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var (
	checkRecursive    bool
	checkType         string
	checkAllowSimilar bool
	checkIsolated     bool
)

func init() {
	addManagerFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

// addManagerFlags registers the flags shared by check and watch.
func addManagerFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&checkRecursive, "recursive", true, "Scan subdirectories")
	cmd.Flags().StringVar(&checkType, "type", "", "Only load plugins with this type tag")
	cmd.Flags().BoolVar(&checkAllowSimilar, "allow-similar", false, "Allow several versions of one plugin")
	cmd.Flags().BoolVar(&checkIsolated, "isolated", false, "Use a separate entry context per plugin")
}

// managerOptions applies the check flags that were set explicitly.
func managerOptions(cmd *cobra.Command, args []string) app.HostOptions {
	opts := hostOptions(cmd)
	if len(args) > 0 {
		opts.Directory = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("recursive") {
		opts.Recursive = &checkRecursive
	}
	if flags.Changed("type") {
		opts.AcceptedType = checkType
	}
	if flags.Changed("allow-similar") {
		opts.AllowSimilar = &checkAllowSimilar
	}
	if flags.Changed("isolated") {
		opts.Isolated = &checkIsolated
	}
	return opts
}

func runCheck(cmd *cobra.Command, args []string) error {
	host, err := app.NewHost(managerOptions(cmd, args))
	if err != nil {
		return err
	}
	defer func() { _ = host.Close(cmd.Context()) }()

	result, err := host.Check(cmd.Context())
	if err != nil {
		return err
	}

	printCheckReport(cmd.OutOrStdout(), result, host.Manager())
	return nil
}
