package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrDegenerateBoundingBox is returned when a bounding box cannot serve as an encoding domain.
var ErrDegenerateBoundingBox = errors.New("degenerate bounding box")

// BoundingBox is an axis-aligned box given by its minimum and maximum corners.
type BoundingBox struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewBoundingBox returns the box spanning the two corners.
func NewBoundingBox(lo, hi r3.Vector) BoundingBox {
	return BoundingBox{Min: lo, Max: hi}
}

// UnitBoundingBox is the [0,1] cube, the domain of color components.
func UnitBoundingBox() BoundingBox {
	return BoundingBox{Max: r3.Vector{X: 1, Y: 1, Z: 1}}
}

// Range returns the extent of the box along each axis.
func (bb BoundingBox) Range() r3.Vector {
	return bb.Max.Sub(bb.Min)
}

// Contains reports whether p lies inside the box. Points on a face are inside.
func (bb BoundingBox) Contains(p r3.Vector) bool {
	return p.X >= bb.Min.X && p.X <= bb.Max.X &&
		p.Y >= bb.Min.Y && p.Y <= bb.Max.Y &&
		p.Z >= bb.Min.Z && p.Z <= bb.Max.Z
}

// Validate ensures both corners are finite and min <= max on every axis.
func (bb BoundingBox) Validate() error {
	for _, v := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrDegenerateBoundingBox, "non-finite corner in %v-%v", bb.Min, bb.Max)
		}
	}
	if bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y || bb.Min.Z > bb.Max.Z {
		return errors.Wrapf(ErrDegenerateBoundingBox, "min %v exceeds max %v", bb.Min, bb.Max)
	}
	return nil
}

// ValidateExtent ensures the box has a positive extent on every axis, which is required to
// divide it into cells.
func (bb BoundingBox) ValidateExtent() error {
	if err := bb.Validate(); err != nil {
		return err
	}
	r := bb.Range()
	if r.X <= 0 || r.Y <= 0 || r.Z <= 0 {
		return errors.Wrapf(ErrDegenerateBoundingBox, "zero extent %v", r)
	}
	return nil
}
