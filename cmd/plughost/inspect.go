package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plughost/internal/domain/config"
	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Print the descriptor of a plugin archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	inspectDescriptor string
	inspectLogo       string
)

func init() {
	inspectCmd.Flags().StringVar(&inspectDescriptor, "descriptor", plugin.DefaultDescriptorFile, "Descriptor entry name")
	inspectCmd.Flags().StringVar(&inspectLogo, "logo", plugin.DefaultLogoFile, "Logo entry name")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	reader := &plugin.DescriptorReader{
		DescriptorFile: inspectDescriptor,
		LogoFile:       inspectLogo,
	}

	// Entry names from --config apply unless the flags were given.
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cmd.Flags().Changed("descriptor") && cfg.DescriptorFile != "" {
			reader.DescriptorFile = cfg.DescriptorFile
		}
		if !cmd.Flags().Changed("logo") && cfg.LogoFile != "" {
			reader.LogoFile = cfg.LogoFile
		}
	}

	info, logo, err := reader.Read(args[0])
	if err != nil {
		if plugin.IsNotPlugin(err) {
			return fmt.Errorf("%s has no %s entry", args[0], reader.DescriptorFile)
		}
		return err
	}

	size := ""
	if logo != nil {
		b := logo.Bounds()
		size = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	}
	printInformation(cmd.OutOrStdout(), args[0], info, logo != nil, size)
	return nil
}
