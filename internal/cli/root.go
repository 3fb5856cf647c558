// Package cli implements the madison command-line interface: direct
// queries against the configured archive, and the serve subcommand
// hosting the HTTP front end.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/debtools/madison/internal/madison"
)

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}

type rootOptions struct {
	configPath string
	verbose    bool
	binary     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "madison <package>...",
		Short: "madison looks up package versions across archive suites",
		Long: `madison answers "which versions of package X exist, in which release
and pocket" by consulting the per-suite index files of a Debian-family
package archive, in the style of rmadison(1).`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runQuery(cmd, opts, args)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "madison.toml",
		"Path to the configuration file (missing file: built-in Ubuntu defaults)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
	root.Flags().BoolVar(&opts.binary, "binary", false,
		"Match binary package names instead of source package names")

	root.AddCommand(newServeCmd(opts))
	return root
}

func runQuery(cmd *cobra.Command, opts *rootOptions, names []string) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	engine, _, err := buildEngine(opts.configPath, logger)
	if err != nil {
		return err
	}

	mode := madison.ModeSource
	if opts.binary {
		mode = madison.ModeBinary
	}

	var rows []madison.Row
	for _, name := range names {
		result, err := engine.Query(cmd.Context(), name, mode)
		if err != nil {
			return err
		}
		if len(result.Missing) > 0 {
			logger.Warn("some distributions were unavailable",
				"package", name, "missing", strings.Join(result.Missing, ", "))
		}
		rows = append(rows, result.Rows...)
	}
	fmt.Fprint(cmd.OutOrStdout(), madison.Format(rows))
	return nil
}

// Execute runs the madison CLI.
func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "madison: %v\n", err)
		return err
	}
	return nil
}
