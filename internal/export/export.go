// Package export flattens aggregation results into CSV tables.
package export

import (
	"errors"
	"strconv"
	"strings"

	"github.com/richd0tcom/trashbin/internal/aggregate"
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
)

// ErrNothingToExport is returned when a result was built from zero events.
// A zero-filled series is fine for a chart but is never written as a file.
var ErrNothingToExport = errors.New("no data to export")

// TotalLabel labels the synthetic last row.
const TotalLabel = "total"

// Row is one table line. Counts follow domain.Categories.
type Row struct {
	Label  string                      `json:"label"`
	Counts [len(domain.Categories)]int `json:"counts"`
}

// ToRows returns one row per label, in the result's order, followed by a
// total row summing each category column.
func ToRows(res aggregate.Result) []Row {
	rows := make([]Row, 0, len(res.Labels)+1)
	for i, label := range res.Labels {
		row := Row{Label: label}
		for j, c := range domain.Categories {
			row.Counts[j] = res.Count(c, i)
		}
		rows = append(rows, row)
	}

	total := Row{Label: TotalLabel}
	totals := res.Totals()
	for j, c := range domain.Categories {
		total.Counts[j] = totals[c]
	}
	return append(rows, total)
}

// Header returns the CSV header line.
func Header() string {
	cols := make([]string, 0, len(domain.Categories)+1)
	cols = append(cols, "label")
	for _, c := range domain.Categories {
		cols = append(cols, c.Column())
	}
	return strings.Join(cols, ",")
}

// Encode renders rows as CSV: header first, one line per row, joined by
// newlines with no trailing newline. Labels come from a fixed vocabulary and
// are written unquoted.
func Encode(rows []Row) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, Header())
	for _, row := range rows {
		var b strings.Builder
		b.WriteString(row.Label)
		for _, n := range row.Counts {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(n))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// File is a rendered export ready to hand to whoever stores or shares it.
type File struct {
	Name    string               `json:"name"`
	Range   calendar.Granularity `json:"range"`
	Rows    []Row                `json:"rows"`
	Content string               `json:"-"`
}

// Build renders res as a CSV file named <nameHint>_<granularity>.csv. If
// nameHint is empty the default hint for the window is used.
func Build(res aggregate.Result, nameHint string) (File, error) {
	if res.Events == 0 {
		return File{}, ErrNothingToExport
	}
	if nameHint == "" {
		nameHint = DefaultName(res.Window, res.Range)
	}

	rows := ToRows(res)
	return File{
		Name:    nameHint + "_" + string(res.Window.Granularity) + ".csv",
		Range:   res.Window.Granularity,
		Rows:    rows,
		Content: Encode(rows),
	}, nil
}

// DefaultName is "<Month-D-YYYY>_Hourly_Collection" for a day view and
// "Trash_Collection_Summary" otherwise.
func DefaultName(w calendar.Window, r calendar.Range) string {
	if w.Granularity == calendar.Hourly {
		return r.Start.Format("January-2-2006") + "_Hourly_Collection"
	}
	return "Trash_Collection_Summary"
}

// ContentType is the MIME type of Build's output.
const ContentType = "text/csv; charset=utf-8"
