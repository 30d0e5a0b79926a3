package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/richd0tcom/trashbin/internal/calendar"
)

type exportFlags struct {
	granularity string
	offset      int
	name        string
	dir         string
	preview     bool
}

func newExportCommand(a *app) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a window's counts as CSV",
		Long: `export aggregates every category over one window and writes the result
as <name>_<granularity>.csv. Offsets move the window back (negative) or
forward in units of the window: days for hourly, weeks for daily, months for
weekly and years for monthly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := calendar.ParseGranularity(f.granularity)
			if err != nil {
				return err
			}

			srv, err := a.newServer(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer srv.Close()

			svc := srv.Summary()
			file, err := svc.Export(cmd.Context(), svc.Window(g, f.offset), f.name)
			if err != nil {
				return err
			}

			if f.preview {
				renderRows(cmd.OutOrStdout(), file.Rows)
				return nil
			}

			path := filepath.Join(f.dir, file.Name)
			if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.granularity, "granularity", "g", string(calendar.Daily), "hourly, daily, weekly, monthly or yearly")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "window offset relative to now")
	cmd.Flags().StringVar(&f.name, "name", "", "file name prefix (default depends on granularity)")
	cmd.Flags().StringVarP(&f.dir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&f.preview, "preview", false, "print the table instead of writing a file")
	return cmd
}
