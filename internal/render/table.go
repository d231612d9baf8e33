package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"roach-race/internal/race"
)

// WriteResultsTable prints the final ranking as a rounded text table
func WriteResultsTable(w io.Writer, ranking []race.RankEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Race results")
	t.AppendHeader(table.Row{"#", "Racer", "Speed", "Trajectory", "Laps", "Finish", "Time"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, e := range ranking {
		finish := "-"
		if e.FinishPosition > 0 {
			finish = fmt.Sprintf("%d", e.FinishPosition)
		}
		t.AppendRow(table.Row{
			e.Rank + 1,
			e.Name,
			fmt.Sprintf("%.2f", e.Speed),
			e.Shape.String(),
			e.Laps,
			finish,
			fmt.Sprintf("%.2f sec", e.Elapsed.Seconds()),
		})
	}
	if len(ranking) > 0 {
		t.AppendFooter(table.Row{"", "Leader", ranking[0].Name})
	}
	t.Render()
}
