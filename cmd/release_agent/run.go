package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/observability"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Build every platform for a tag and publish one release",
	Long: `Checks the reference against the trigger pattern, builds all target platforms
concurrently, and publishes a single release with every renamed artifact attached.
Nothing is published unless every build succeeds.

When --ref is omitted the tag pointing at HEAD of --repo is used. A bare tag name
such as v1.2.3 is accepted as shorthand for refs/tags/v1.2.3.

Configuration can be loaded from a YAML or JSON file using --config. Command-line
arguments override config file values.`,
	Args: cobra.NoArgs,
	RunE: runReleaseCmd,
}

var (
	runFlags pipelineFlags
	runRef   string
	runRepo  string
)

func init() {
	runFlags.register(runCommand)
	runCommand.Flags().StringVarP(&runRef, "ref", "r", "", "Reference that triggered the run, e.g. refs/tags/v1.2.3")
	runCommand.Flags().StringVar(&runRepo, "repo", "", "Local git checkout used to resolve the reference (default: the build workdir)")

	rootCmd.AddCommand(runCommand)
}

func runReleaseCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runRelease(ctx, &runFlags, runRef, runRepo, cmd.Flags().Changed, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// runRelease executes one release run and prints its summary to out.
// A reference that does not match the trigger pattern is a successful no-op.
func runRelease(ctx context.Context, flags *pipelineFlags, ref, repoPath string, changed func(string) bool, out, logOut io.Writer) error {
	cfg, err := loadConfig(flags, changed)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, logOut)
	printer := observability.NewPrinter(out)

	if repoPath == "" {
		repoPath = cfg.Build.WorkDir
	}
	event, err := resolveEvent(repoPath, normalizeRef(ref), logger)
	if err != nil {
		return err
	}

	matcher, err := newMatcher(cfg)
	if err != nil {
		return err
	}
	if !matcher.MatchEvent(event) {
		printer.PrintMatch(event.Reference, matcher.Pattern(), false)
		return nil
	}

	ledger := openLedger(ctx, cfg, logger)
	if ledger != nil {
		defer ledger.Close()
	}

	controller, err := newController(ctx, cfg, event.Repository, ledger, logger, logProgress(logger))
	if err != nil {
		return err
	}
	printer.PrintPlatforms(cfg.Platforms)

	summary, runErr := controller.Run(ctx, event)
	printer.PrintRunSummary(summary)
	return runErr
}

// resolveEvent reads the reference and commit from the checkout. An explicit
// reference is used as given when the checkout cannot be read.
func resolveEvent(repoPath, ref string, logger *logrus.Logger) (types.TriggerEvent, error) {
	event, err := trigger.ResolveEvent(repoPath, ref)
	if err == nil {
		return event, nil
	}
	if ref == "" {
		return types.TriggerEvent{}, configError(fmt.Errorf("no --ref given and the tag at HEAD could not be determined: %w", err))
	}

	logger.WithError(err).Warn("Could not read repository; using the reference as given")
	return types.TriggerEvent{Reference: ref, Repository: types.RepositorySnapshot{Path: repoPath}}, nil
}
