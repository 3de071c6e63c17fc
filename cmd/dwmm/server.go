package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"dwmm/internal/core/config"
	"dwmm/internal/daemon"
	"dwmm/internal/shared/observability"
	"dwmm/internal/shared/util"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server <project dir>",
	Short: "Run the index server for a project in the foreground",
	Long:  "Runs the server that clients start automatically. It logs to the project's log file under the temp directory and exits when a client sends stop or kill, or on a termination signal.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return exitError{code: daemon.ExitInvalidArgs}
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return exitError{code: daemon.ExitInvalidArgs}
	}

	cfg, err := config.LoadForProject(root)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Error: ")+err.Error())
		return exitError{code: daemon.ExitInvalidArgs}
	}
	files := config.TempFilesFor(cfg.Daemon.TempDir, root)
	closeLog := setupLogging(cfg, files.Log)
	defer closeLog()

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.EnableTracing, cfg.Observability.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(stopCtx); err != nil {
				slog.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	start := time.Now()
	code := daemon.Run(ctx, daemon.Options{ProjectRoot: root, Config: cfg, Logger: slog.Default()})
	slog.Info("exiting",
		"code", code,
		"reason", daemon.DescribeExit(code),
		"uptime", time.Since(start).Round(time.Second).String(),
		"heap_mb", util.GetHeapAllocMB(),
	)
	if code != daemon.ExitOK {
		return exitError{code: code}
	}
	return nil
}
