package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/server"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

var (
	serveFlags pipelineFlags
	serveAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the push webhook receiver",
	Long: `Start an HTTP server that receives push webhooks and starts a release run for
every pushed tag that matches the trigger pattern. One run executes at a time.

Endpoints:
  POST /hooks/push        push webhook (signature checked when WEBHOOK_SECRET is set)
  GET  /runs              recent runs
  GET  /runs/{id}         run summary
  GET  /runs/{id}/events  run progress as server-sent events
  GET  /health`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default \":8080\")")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv, cleanup, err := newServer(context.Background(), &serveFlags, serveAddr, cmd.Flags().Changed, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.Start()
}

func newServer(ctx context.Context, flags *pipelineFlags, addr string, changed func(string) bool, logOut io.Writer) (*server.Server, func(), error) {
	cfg, err := loadConfig(flags, changed)
	if err != nil {
		return nil, nil, err
	}
	if changed("addr") {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg, logOut)
	log := logging.NewContextLogger(logger, "main").InFunc("newServer")

	// The checkout's origin remote names the GitHub repository when config doesn't
	var repo types.RepositorySnapshot
	if event, err := trigger.ResolveEvent(cfg.Build.WorkDir, ""); err == nil {
		repo = event.Repository
	} else {
		log.WithError(err).Debug("Workdir is not a readable git checkout")
	}

	ledger := openLedger(ctx, cfg, logger)
	cleanup := func() {
		if ledger != nil {
			ledger.Close()
		}
	}

	// Progress is routed to the server once it exists; no run starts before that
	var srv *server.Server
	logged := logProgress(logger)
	onProgress := func(e pipeline.ProgressEvent) {
		logged(e)
		srv.Progress(e)
	}

	controller, err := newController(ctx, cfg, repo, ledger, logger, onProgress)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	matcher, err := newMatcher(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	serverCfg := server.Config{
		Addr:          cfg.Server.Addr,
		WebhookSecret: cfg.Server.WebhookSecret,
		Workdir:       cfg.Build.WorkDir,
		Matcher:       matcher,
		Runner:        controller,
		Logger:        logger,
	}
	if ledger != nil {
		serverCfg.History = ledger
	}

	srv, err = server.New(serverCfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}
	if cfg.Server.WebhookSecret == "" {
		log.Warn("WEBHOOK_SECRET is not set; push webhooks are accepted unsigned")
	}
	return srv, cleanup, nil
}
