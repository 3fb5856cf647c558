package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debtools/madison/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve madison queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
			engine, cfg, err := buildEngine(opts.configPath, logger)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			handler := web.NewHandler(engine, logger)
			return web.ListenAndServe(ctx, listen, handler, logger)
		},
	}

	serve.Flags().StringVar(&listen, "listen", "",
		"Listen address (default: the configured listen value)")
	return serve
}
