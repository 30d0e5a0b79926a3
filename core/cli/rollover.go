package cli

import (
	"github.com/spf13/cobra"
)

func newRolloverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Archive and reset live counters left over from a previous day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := a.newServer(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer srv.Close()

			outcomes, err := srv.Summary().Counters(cmd.Context())
			renderOutcomes(cmd.OutOrStdout(), outcomes)
			return err
		},
	}
}
