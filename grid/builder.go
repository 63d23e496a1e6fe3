package grid

import (
	"github.com/pkg/errors"

	"go.viam.com/pcgrid/pointcloud"
)

// BuildStats summarizes a call to Build.
type BuildStats struct {
	// Points is the size of the input cloud.
	Points int
	// Added is the number of points stored in the grid.
	Added int
	// Dropped is the number of points outside the bounding box.
	Dropped int
}

// Build quantizes every point of cloud that lies inside the grid's bounding box and appends it
// to its cell. Points outside the box are skipped. Uncolored points are stored as black. The grid
// must have been Reset first; the cloud is not modified.
func (g *Grid) Build(cloud pointcloud.PointCloud) (BuildStats, error) {
	if g.NumCells() == 0 {
		return BuildStats{}, errors.Wrap(ErrInvalidDimensions, "grid has not been reset")
	}
	q, err := g.Codec.Quantizer()
	if err != nil {
		return BuildStats{}, err
	}

	stats := BuildStats{Points: cloud.Size()}
	cellBox := g.CellBoundingBox()
	colorBox := pointcloud.UnitBoundingBox()
	cloud.Iterate(0, 0, func(_ int, p pointcloud.Point) bool {
		if !g.BoundingBox.Contains(p.Position) {
			stats.Dropped++
			return true
		}
		idx := g.CellIndex(p.Position)
		g.AddVoxel(idx, Attribute{
			Position: q.Quantize(g.MapToCell(p.Position, idx), cellBox),
			Color:    q.Quantize(p.Color, colorBox),
		})
		stats.Added++
		return true
	})
	return stats, nil
}
