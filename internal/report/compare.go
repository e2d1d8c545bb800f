package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderComparison writes a side-by-side table of matched Mosaiq and
// registration shifts. Rows without a Mosaiq partner show the
// registration side only.
func RenderComparison(matches []Match, w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{
		"FX", "CBCT", "Time", "Source", "Type",
		"Sup (cm)", "Lat (cm)", "Ant (cm)",
		"Cor (deg)", "Sag (deg)", "Trans (deg)", "Mag (cm)",
	})

	for _, m := range matches {
		mq := ClipboxToMosaiq(m.RPS.Record.Clipbox)
		t.AppendRow(table.Row{
			m.RPS.FX, m.RPS.CBCT, m.RPS.Time.Format("02/01 15:04"), "RPS", "",
			fmt.Sprintf("%.2f", mq.Sup),
			fmt.Sprintf("%.2f", mq.Lat),
			fmt.Sprintf("%.2f", mq.Ant),
			fmt.Sprintf("%.1f", mq.Cor),
			fmt.Sprintf("%.1f", mq.Sag),
			fmt.Sprintf("%.1f", mq.Trans),
			"",
		})

		if m.Mosaiq == nil {
			t.AppendRow(table.Row{"", "", "", "Mosaiq", "", "no match", "", "", "", "", "", ""})
			t.AppendSeparator()
			continue
		}

		t.AppendRow(table.Row{
			"", "", m.Mosaiq.Time.Format("02/01 15:04"), "Mosaiq", m.Mosaiq.Kind,
			optional(m.Mosaiq.Sup, "%.2f"),
			optional(m.Mosaiq.Lat, "%.2f"),
			optional(m.Mosaiq.Ant, "%.2f"),
			optional(m.Mosaiq.CorB, "%.1f"),
			optional(m.Mosaiq.SagB, "%.1f"),
			optional(m.Mosaiq.TransB, "%.1f"),
			optional(m.Mosaiq.Mag, "%.2f"),
		})
		t.AppendSeparator()
	}

	t.Render()
}

func optional(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
