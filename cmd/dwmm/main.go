package main

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dwmm/internal/core/config"

	"github.com/spf13/cobra"
)

const VERSION = "1.0.0"

var (
	flagProject string
	flagVerbose bool
	flagJSON    bool
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if stderrors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "dwmm",
	Short:         "Dude, where's my module? Import suggestions from a background index",
	Long:          "dwmm keeps a live index of every import and export in a JavaScript or TypeScript project and suggests import statements for undefined identifiers.",
	Version:       VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "project directory or a file inside it (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON results")

	rootCmd.AddCommand(serverCmd, suggestCmd, wheresCmd, waitCmd, stopCmd, killCmd, nativesCmd)
}

// projectRoot finds the nearest package.json at or above --project or the
// working directory.
func projectRoot() (string, error) {
	start := flagProject
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = wd
	}
	root, err := config.NewRootFinder(0).Find(start)
	if err != nil {
		return "", fmt.Errorf("find project root from %s: %w", start, err)
	}
	return root, nil
}

func logLevel(cfg *config.Config) slog.Level {
	if flagVerbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging sends slog output to stderr, or to logPath when it is set.
// The returned close function is never nil.
func setupLogging(cfg *config.Config, logPath string) func() {
	output := os.Stderr
	closeFn := func() {}
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
			closeFn = func() { _ = f.Close() }
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel(cfg)}))
	slog.SetDefault(logger)
	return closeFn
}
