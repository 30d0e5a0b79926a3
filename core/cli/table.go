package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/richd0tcom/trashbin/internal/domain"
	"github.com/richd0tcom/trashbin/internal/export"
	"github.com/richd0tcom/trashbin/internal/rollover"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	return tbl
}

// renderRows prints export rows; the total row goes in the footer.
func renderRows(w io.Writer, rows []export.Row) {
	tbl := newTable(w)

	header := table.Row{"label"}
	for _, c := range domain.Categories {
		header = append(header, c.Column())
	}
	tbl.AppendHeader(header)

	for _, r := range rows {
		row := table.Row{r.Label}
		for _, n := range r.Counts {
			row = append(row, n)
		}
		if r.Label == export.TotalLabel {
			tbl.AppendFooter(row)
			continue
		}
		tbl.AppendRow(row)
	}
	tbl.Render()
}

func renderOutcomes(w io.Writer, outcomes []rollover.Outcome) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"category", "count", "last reset", "archived"})
	for _, out := range outcomes {
		tbl.AppendRow(table.Row{
			out.Counter.Category.String(),
			out.Counter.Count,
			out.Counter.LastResetDate.String(),
			fmt.Sprint(out.Archived),
		})
	}
	tbl.Render()
}
