package report

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary writes a console table of outcome counts by status and
// confidence.
func RenderSummary(out io.Writer, rows []Row) {
	type key struct {
		status     string
		confidence string
	}
	counts := make(map[key]int)
	already := 0
	for _, row := range rows {
		counts[key{row.Status, row.Confidence}]++
		if row.AlreadyInCollection {
			already++
		}
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].status != keys[j].status {
			return keys[i].status < keys[j].status
		}
		return keys[i].confidence < keys[j].confidence
	})

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Status", "Confidence", "Count"})
	for _, k := range keys {
		t.AppendRow(table.Row{k.status, k.confidence, counts[k]})
	}
	t.AppendFooter(table.Row{"Total", "", len(rows)})
	t.AppendFooter(table.Row{"Already in collection", "", already})
	t.Render()
}
