package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/observability"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a release config file",
	Long: `Checks a release config against the configuration schema, validates field values,
and verifies that every platform publishes under a distinct asset name.`,
	Args: cobra.NoArgs,
	RunE: runValidateCmd,
}

var validateConfigPath string

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "Path to release config (required)")
	_ = validateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(validateCmd)
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
	return runValidate(validateConfigPath, cmd.OutOrStdout())
}

//nolint:errcheck // writing to stdout
func runValidate(configPath string, out io.Writer) error {
	flags := &pipelineFlags{configPath: configPath}
	cfg, err := loadConfig(flags, func(string) bool { return false })
	if err != nil {
		fmt.Fprintln(out, "Validation failed")
		return err
	}

	observability.NewPrinter(out).PrintPlatforms(cfg.Platforms)
	fmt.Fprintf(out, "Trigger:   %s\n", cfg.Trigger.Pattern)
	fmt.Fprintf(out, "Store:     %s\n", cfg.Store.Kind)
	fmt.Fprintf(out, "Publisher: %s\n", cfg.Publisher.Kind)
	fmt.Fprintln(out, "Validation passed")
	return nil
}
