package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dwmm/internal/core/errors"
)

// Run serves a project until it is stopped and returns the process exit
// code. HUP, INT, QUIT and TERM trigger the same cleanup as a stop and exit
// with 128 plus the signal number.
func Run(ctx context.Context, opts Options) int {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProjectRoot == "" {
		logger.Error("usage: server <project dir>")
		return ExitInvalidArgs
	}
	if info, err := os.Stat(opts.ProjectRoot); err != nil || !info.IsDir() {
		logger.Error("project dir doesn't exist", "path", opts.ProjectRoot)
		return ExitProjectDirMissing
	}

	srv, err := New(opts)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return ExitInvalidArgs
	}
	logger.Info("starting", "project", opts.ProjectRoot, "socket", srv.Files().Sock)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("got signal", "signal", sig.String())
			cancel(signalCause{sig: sig})
		case <-ctx.Done():
		}
	}()

	reason, err := srv.Serve(ctx)
	return exitCode(reason, err, context.Cause(ctx), logger)
}

func exitCode(reason Shutdown, err error, cause error, logger *slog.Logger) int {
	if err != nil {
		if errors.IsCode(err, errors.CodeLockConflict) {
			logger.Error("another server is already running")
			return ExitLockHeld
		}
		logger.Error("server failed", "error", err)
		return ExitFailure
	}
	switch reason {
	case ShutdownKill:
		return ExitKilledByClient
	case ShutdownContext:
		var sc signalCause
		if stderrors.As(cause, &sc) {
			return SignalExitCode(sc.sig)
		}
	}
	return ExitOK
}
