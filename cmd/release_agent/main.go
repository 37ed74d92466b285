// Package main provides the entry point for the release agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "release_agent",
	Short: "Tag-triggered multi-platform release pipeline",
	Long: `release_agent builds the boot binary for every target platform when a version tag
is pushed, and publishes the renamed artifacts together as one release.

Exit codes: 0 completed or nothing to do, 1 unexpected error, 2 build failure,
3 publish failure, 4 configuration error.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(pipeline.ExitCode(err))
	}
}
