package loader

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteSummary renders the per-file outcome of a run as a table.
func WriteSummary(w io.Writer, report *Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"File", "Table", "Rows", "With xG", "Unknown dates", "Status"})

	for _, r := range report.Tables {
		t.AppendRow(table.Row{r.File, r.Table, r.Rows, r.WithXG, r.UnknownDates, "ok"})
	}
	for _, f := range report.Failures {
		t.AppendRow(table.Row{f.File, f.Table, "", "", "", f.Reason})
	}

	t.AppendFooter(table.Row{"", "Total", report.TotalRows, "", "", report.StorePath})
	t.Render()
}
