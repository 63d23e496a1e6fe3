package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidDimensions is returned when a grid has a zero cell count on some axis.
var ErrInvalidDimensions = errors.New("invalid grid dimensions")

// Dimensions are the number of cells along each axis.
type Dimensions struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
	Z uint8 `json:"z"`
}

// NewDimensions returns dimensions with the given cell counts.
func NewDimensions(x, y, z uint8) Dimensions {
	return Dimensions{X: x, Y: y, Z: z}
}

// Validate ensures every axis has at least one cell.
func (d Dimensions) Validate() error {
	if d.X == 0 || d.Y == 0 || d.Z == 0 {
		return errors.Wrapf(ErrInvalidDimensions, "%s has a zero axis", d)
	}
	return nil
}

// NumCells is the total number of cells.
func (d Dimensions) NumCells() int {
	return int(d.X) * int(d.Y) * int(d.Z)
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z)
}

// ParseDimensions parses "X,Y,Z" or "XxYxZ". A single number is used for all three axes.
func ParseDimensions(s string) (Dimensions, error) {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || r == 'x'
	})
	if len(parts) == 1 {
		parts = []string{parts[0], parts[0], parts[0]}
	}
	if len(parts) != 3 {
		return Dimensions{}, errors.Wrapf(ErrInvalidDimensions, "expected three values in %q", s)
	}
	var vals [3]uint8
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return Dimensions{}, errors.Wrapf(ErrInvalidDimensions, "axis %d of %q: %v", i, s, err)
		}
		vals[i] = uint8(v)
	}
	d := NewDimensions(vals[0], vals[1], vals[2])
	return d, d.Validate()
}

// Coords is a cell position in grid axes.
type Coords struct {
	I, J, K int
}

// Index linearizes c with x varying fastest: i + X*(j + Y*k).
func (d Dimensions) Index(c Coords) int {
	return c.I + int(d.X)*(c.J+int(d.Y)*c.K)
}

// CoordsOf is the inverse of Index.
func (d Dimensions) CoordsOf(index int) Coords {
	x, y := int(d.X), int(d.Y)
	return Coords{
		I: index % x,
		J: (index / x) % y,
		K: index / (x * y),
	}
}
