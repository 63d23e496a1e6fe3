package encoder

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/pointcloud"
)

// HeaderSize is the number of bytes preceding the cell data in every message.
const HeaderSize = 28

// Header describes how the cells that follow it were encoded.
//
//	offset  size  field
//	0       1     codec id
//	1       3     dimensions x, y, z
//	4       12    bounding box min as 3 x float32
//	16      12    bounding box max as 3 x float32
type Header struct {
	Codec       codec.Codec
	Dimensions  grid.Dimensions
	BoundingBox pointcloud.BoundingBox
}

// MarshalBinary encodes the header in its fixed 28 byte layout.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf, nil
}

func (h Header) put(buf []byte) {
	buf[0] = byte(h.Codec)
	buf[1] = h.Dimensions.X
	buf[2] = h.Dimensions.Y
	buf[3] = h.Dimensions.Z
	putVector(buf[4:], h.BoundingBox.Min)
	putVector(buf[16:], h.BoundingBox.Max)
}

// UnmarshalBinary decodes a header from the first HeaderSize bytes of data. Bytes after the
// header are ignored.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return errors.Wrapf(ErrTruncatedHeader, "have %d of %d bytes", len(data), HeaderSize)
	}
	c := codec.Codec(data[0])
	if err := c.Validate(); err != nil {
		return err
	}
	*h = Header{
		Codec:      c,
		Dimensions: grid.NewDimensions(data[1], data[2], data[3]),
		BoundingBox: pointcloud.NewBoundingBox(
			readVector(data[4:]),
			readVector(data[16:]),
		),
	}
	return nil
}

// ReadHeader decodes the header at the start of msg.
func ReadHeader(msg []byte) (Header, error) {
	var h Header
	err := h.UnmarshalBinary(msg)
	return h, err
}

func putVector(buf []byte, v r3.Vector) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(v.Z)))
}

func readVector(buf []byte) r3.Vector {
	return r3.Vector{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
	}
}

// widenToFloat32 returns the smallest box with float32 corners that contains bb, so that the
// box written to the header is exactly the box the grid was built over.
func widenToFloat32(bb pointcloud.BoundingBox) pointcloud.BoundingBox {
	return pointcloud.NewBoundingBox(
		r3.Vector{X: float32Down(bb.Min.X), Y: float32Down(bb.Min.Y), Z: float32Down(bb.Min.Z)},
		r3.Vector{X: float32Up(bb.Max.X), Y: float32Up(bb.Max.Y), Z: float32Up(bb.Max.Z)},
	)
}

func float32Down(v float64) float64 {
	f := float32(v)
	if float64(f) > v {
		f = math.Nextafter32(f, float32(math.Inf(-1)))
	}
	return float64(f)
}

func float32Up(v float64) float64 {
	f := float32(v)
	if float64(f) < v {
		f = math.Nextafter32(f, float32(math.Inf(1)))
	}
	return float64(f)
}
