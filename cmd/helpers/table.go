package helpers

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// tableRendition is the borderless layout the CLI commands share:
// left-aligned cells separated by whitespace, no header rule.
func tableRendition() tw.Rendition {
	symbols := tw.NewSymbolCustom("tokend").
		WithRow(" ").
		WithColumn(" ").
		WithTopLeft("").
		WithTopMid(" ").
		WithTopRight(" ").
		WithMidLeft(" ").
		WithCenter(" ").
		WithMidRight(" ").
		WithBottomLeft(" ").
		WithBottomMid(" ").
		WithBottomRight(" ")

	rd := tw.Rendition{Symbols: symbols}
	rd.Settings.Lines.ShowHeaderLine = tw.Off
	return rd
}

// PrintTable renders rows under the given headers
func PrintTable(w io.Writer, headers []string, rows [][]any) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}

	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Row: tw.CellConfig{
			Merging:   tw.CellMerging{Mode: tw.MergeHierarchical},
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tableRendition())),
		tablewriter.WithConfig(cnf),
	)

	headerCells := make([]any, len(headers))
	for i, h := range headers {
		headerCells[i] = h
	}
	table.Header(headerCells...)
	table.Bulk(rows)
	table.Render()
}

// PrintMapAsTable renders a map as a two-column table, keys sorted
func PrintMapAsTable(w io.Writer, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, data[k]})
	}
	PrintTable(w, []string{"Key", "Value"}, rows)
}
