package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/config"
	"github.com/jonathan/boot-release/internal/observability"
)

var matchCmd = &cobra.Command{
	Use:   "match <reference>",
	Short: "Report whether a reference would trigger a release run",
	Long: `Evaluates the trigger pattern against a reference without building anything.
Exits 0 whether or not the reference matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatchCmd,
}

var (
	matchConfigPath string
	matchPattern    string
	matchSemver     bool
)

func init() {
	matchCmd.Flags().StringVar(&matchConfigPath, "config", "", "Path to release config supplying the trigger pattern")
	matchCmd.Flags().StringVar(&matchPattern, "pattern", "", "Tag glob (overrides the config file; default \"v*\")")
	matchCmd.Flags().BoolVar(&matchSemver, "semver", false, "Also require the tag to parse as a semantic version")
	rootCmd.AddCommand(matchCmd)
}

func runMatchCmd(cmd *cobra.Command, args []string) error {
	return runMatch(args[0], matchConfigPath, matchPattern, matchSemver, cmd.Flags().Changed, cmd.OutOrStdout())
}

func runMatch(ref, configPath, pattern string, semver bool, changed func(string) bool, out io.Writer) error {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return configError(err)
		}
		cfg = loaded
	}
	if changed("pattern") {
		cfg.Trigger.Pattern = pattern
	}
	if changed("semver") {
		cfg.Trigger.RequireSemver = semver
	}

	matcher, err := newMatcher(cfg)
	if err != nil {
		return err
	}

	ref = normalizeRef(ref)
	observability.NewPrinter(out).PrintMatch(ref, matcher.Pattern(), matcher.Match(ref))
	return nil
}
