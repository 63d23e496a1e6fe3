package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Point is a single position in space with an optional color. Color components are
// red, green and blue in X, Y and Z respectively, each in [0,1].
type Point struct {
	Position r3.Vector
	Color    r3.Vector
	HasColor bool
}

// NewPoint returns an uncolored point.
func NewPoint(pos r3.Vector) Point {
	return Point{Position: pos}
}

// NewColoredPoint returns a point with both position and color.
func NewColoredPoint(pos, clr r3.Vector) Point {
	return Point{Position: pos, Color: clr, HasColor: true}
}

// ColorFromNRGBA converts an 8 bit color into unit range components. Alpha is ignored.
func ColorFromNRGBA(c color.NRGBA) r3.Vector {
	return r3.Vector{X: float64(c.R) / 255, Y: float64(c.G) / 255, Z: float64(c.B) / 255}
}

// RGB255 returns the color components of the point scaled to 8 bits.
func (p Point) RGB255() (uint8, uint8, uint8) {
	return unitTo255(p.Color.X), unitTo255(p.Color.Y), unitTo255(p.Color.Z)
}

// NRGBA returns the opaque 8 bit color of the point.
func (p Point) NRGBA() color.NRGBA {
	r, g, b := p.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func unitTo255(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
