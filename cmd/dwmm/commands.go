package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"dwmm/internal/client"
	"dwmm/internal/core/config"
	"dwmm/internal/core/indexer"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	flagCode  string
	flagStdin bool
	flagFile  string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file>",
	Short: "Suggest imports for the undefined identifiers in a file",
	Long:  "Reads the file from disk, or uses --code / --stdin for unsaved contents, and prints import statements for every identifier it does not define.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

var wheresCmd = &cobra.Command{
	Use:   "wheres <identifier>",
	Short: "List every known import of an identifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runWheres,
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Start the server if needed and wait until indexing is done",
	Args:  cobra.NoArgs,
	RunE:  runWait,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the project's server after it answers in-flight requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.StopServer(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("server stopped"))
			return nil
		})
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the project's server immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.KillServer(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("server killed"))
			return nil
		})
	},
}

var nativesCmd = &cobra.Command{
	Use:   "natives",
	Short: "Print the core modules and exports the index declares",
	Args:  cobra.NoArgs,
	RunE:  runNatives,
}

func init() {
	suggestCmd.Flags().StringVar(&flagCode, "code", "", "source to analyze instead of the file contents")
	suggestCmd.Flags().BoolVar(&flagStdin, "stdin", false, "read the source to analyze from stdin")
	wheresCmd.Flags().StringVar(&flagFile, "file", "", "render paths relative to this file (default: <project>/index.js)")
}

// withClient loads the project config, sets up logging and runs fn with a
// client that is closed afterwards.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadForProject(root)
	if err != nil {
		return err
	}
	defer setupLogging(cfg, "")()

	c, err := client.New(client.Options{ProjectRoot: root, Config: cfg})
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(cmd.Context(), c)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	var code *string
	switch {
	case flagStdin:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		s := string(data)
		code = &s
	case cmd.Flags().Changed("code"):
		code = &flagCode
	}

	if flagProject == "" {
		flagProject = file
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		result, err := c.Suggest(ctx, file, code)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printSuggestions(cmd.OutOrStdout(), result)
		return nil
	})
}

func runWheres(cmd *cobra.Command, args []string) error {
	file := flagFile
	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		file = abs
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		result, err := c.Wheres(ctx, args[0], file)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printWheres(cmd.OutOrStdout(), args[0], result)
		return nil
	})
}

func runWait(cmd *cobra.Command, _ []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		out := cmd.ErrOrStderr()
		start := time.Now()
		remove := c.OnProgress(func(p indexer.Progress) {
			fmt.Fprintf(out, "\r%s", statusStyle.Render(fmt.Sprintf("indexed %s of %s files",
				humanize.Comma(int64(p.Completed)), humanize.Comma(int64(p.Total)))))
		})
		defer remove()
		removeErr := c.OnError(func(err error) {
			fmt.Fprintf(out, "\n%s%s\n", warnStyle.Render("warning: "), err)
		})
		defer removeErr()

		if err := c.WaitUntilReady(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", successStyle.Render("ready after "+time.Since(start).Round(time.Millisecond).String()))
		return nil
	})
}

func runNatives(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if root, err := projectRoot(); err == nil {
		if loaded, err := config.LoadForProject(root); err == nil {
			cfg = loaded
		}
	}
	defer setupLogging(cfg, "")()

	loader := indexer.FallbackNatives{
		Primary:   &indexer.NodeNatives{Binary: cfg.Daemon.NodeBinary, Timeout: cfg.Daemon.NativesTimeout},
		Secondary: indexer.StaticNatives{},
	}
	natives, err := loader.LoadNatives(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), natives)
	}
	printNatives(cmd.OutOrStdout(), natives)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
