// Package grid buckets points of a cloud into a regular voxel grid over a bounding box and
// stores each point as a quantized position relative to its cell together with its quantized
// color.
//
// A Grid is working state: it is reset at the start of every encode or decode and is not safe
// for concurrent use.
package grid

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/pointcloud"
)

// Attribute is a quantized point: its position relative to the cell origin and its color.
type Attribute struct {
	Position codec.Value
	Color    codec.Value
}

// Grid is a dense grid of cells, each holding the attributes of the points that fell in it in
// encounter order.
type Grid struct {
	Dimensions  Dimensions
	BoundingBox pointcloud.BoundingBox
	Codec       codec.Codec

	cellRange r3.Vector
	cells     [][]Attribute
}

// New returns an empty grid. It must be Reset before use.
func New() *Grid {
	return &Grid{}
}

// Reset validates the configuration and, only if it is valid, clears the grid and sizes it to
// dims cells over bb. Cell storage is reused between resets.
func (g *Grid) Reset(dims Dimensions, bb pointcloud.BoundingBox, c codec.Codec) error {
	if err := dims.Validate(); err != nil {
		return err
	}
	if err := bb.ValidateExtent(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	g.Dimensions = dims
	g.BoundingBox = bb
	g.Codec = c

	r := bb.Range()
	g.cellRange = r3.Vector{
		X: r.X / float64(dims.X),
		Y: r.Y / float64(dims.Y),
		Z: r.Z / float64(dims.Z),
	}

	n := dims.NumCells()
	if cap(g.cells) < n {
		g.cells = make([][]Attribute, n)
	} else {
		g.cells = g.cells[:n]
	}
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	return nil
}

// NumCells returns the number of cells.
func (g *Grid) NumCells() int {
	return len(g.cells)
}

// Cell returns the attributes of the cell at index.
func (g *Grid) Cell(index int) []Attribute {
	return g.cells[index]
}

// AddVoxel appends an attribute to the cell at index.
func (g *Grid) AddVoxel(index int, attr Attribute) {
	g.cells[index] = append(g.cells[index], attr)
}

// Size returns the number of attributes across all cells.
func (g *Grid) Size() int {
	total := 0
	for _, cell := range g.cells {
		total += len(cell)
	}
	return total
}

// OccupiedCells returns how many cells hold at least one attribute.
func (g *Grid) OccupiedCells() int {
	occupied := 0
	for _, cell := range g.cells {
		if len(cell) > 0 {
			occupied++
		}
	}
	return occupied
}

// CellRange returns the size of one cell in world units.
func (g *Grid) CellRange() r3.Vector {
	return g.cellRange
}

// CellBoundingBox is the quantization domain of a cell-local position.
func (g *Grid) CellBoundingBox() pointcloud.BoundingBox {
	return pointcloud.NewBoundingBox(r3.Vector{}, g.cellRange)
}

// CellCoords returns the cell p falls in. Each cell owns the half-open interval (lo, hi] along
// every axis, so a point on an internal boundary goes to the lower cell. Points outside the grid
// are clamped to the nearest cell.
func (g *Grid) CellCoords(p r3.Vector) Coords {
	offset := p.Sub(g.BoundingBox.Min)
	return Coords{
		I: axisCoord(offset.X, g.cellRange.X, g.Dimensions.X),
		J: axisCoord(offset.Y, g.cellRange.Y, g.Dimensions.Y),
		K: axisCoord(offset.Z, g.cellRange.Z, g.Dimensions.Z),
	}
}

// CellIndex returns the linear index of the cell p falls in.
func (g *Grid) CellIndex(p r3.Vector) int {
	return g.Dimensions.Index(g.CellCoords(p))
}

// CellOrigin returns the world position of the minimum corner of the cell at index.
func (g *Grid) CellOrigin(index int) r3.Vector {
	c := g.Dimensions.CoordsOf(index)
	return r3.Vector{
		X: g.BoundingBox.Min.X + float64(c.I)*g.cellRange.X,
		Y: g.BoundingBox.Min.Y + float64(c.J)*g.cellRange.Y,
		Z: g.BoundingBox.Min.Z + float64(c.K)*g.cellRange.Z,
	}
}

// MapToCell returns p relative to the origin of the cell at index.
func (g *Grid) MapToCell(p r3.Vector, index int) r3.Vector {
	return p.Sub(g.CellOrigin(index))
}

func axisCoord(offset, cellSize float64, dim uint8) int {
	c := int(math.Ceil(offset/cellSize)) - 1
	if c < 0 {
		return 0
	}
	if c > int(dim)-1 {
		return int(dim) - 1
	}
	return c
}
