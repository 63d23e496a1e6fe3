package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/pcgrid/encoder"
	"go.viam.com/pcgrid/grid"
)

// InspectAction prints the header of a message and a table of its occupied cells.
func InspectAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return Errorf("inspect requires exactly one input file")
	}
	msg, err := os.ReadFile(filepath.Clean(c.Args().First()))
	if err != nil {
		return err
	}
	summary, err := encoder.Inspect(msg)
	if err != nil {
		return err
	}
	out, err := renderSummary(summary)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

// renderSummary formats the header of a message followed by one row per occupied cell.
func renderSummary(summary encoder.Summary) (string, error) {
	g := grid.New()
	if err := g.Reset(summary.Dimensions, summary.BoundingBox, summary.Codec); err != nil {
		return "", err
	}

	header := table.NewWriter()
	header.AppendRows([]table.Row{
		{"Codec", summary.Codec.String()},
		{"Dimensions", summary.Dimensions.String()},
		{"Bounding box", fmt.Sprintf("%v - %v", summary.BoundingBox.Min, summary.BoundingBox.Max)},
		{"Cell size", fmt.Sprintf("%v", g.CellRange())},
		{"Points", summary.Points},
		{"Occupied cells", fmt.Sprintf("%d / %d", summary.OccupiedCells, len(summary.Counts))},
		{"Bytes", summary.Bytes},
	})

	cells := table.NewWriter()
	cells.AppendHeader(table.Row{"Index", "Cell", "Origin", "Points"})
	for idx, count := range summary.Counts {
		if count == 0 {
			continue
		}
		coords := summary.Dimensions.CoordsOf(idx)
		origin := g.CellOrigin(idx)
		cells.AppendRow(table.Row{
			idx,
			fmt.Sprintf("%d,%d,%d", coords.I, coords.J, coords.K),
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", origin.X, origin.Y, origin.Z),
			count,
		})
	}
	cells.AppendFooter(table.Row{"", "", "Total", summary.Points})

	return header.Render() + "\n" + cells.Render(), nil
}
