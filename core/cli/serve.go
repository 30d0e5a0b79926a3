package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ingest workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := a.newServer(ctx, true)
			if err != nil {
				return err
			}

			err = srv.Start(ctx)
			if cerr := srv.Close(); cerr != nil {
				a.logger.Warn("close server", slog.Any("error", cerr))
			}
			if err != nil {
				return err
			}

			a.logger.Info("server shutdown complete")
			return nil
		},
	}
}
