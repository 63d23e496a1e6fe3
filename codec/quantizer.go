package codec

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/pcgrid/pointcloud"
)

// Quantizer maps vectors inside a domain to a codec's fixed-width representation and back.
// Values outside the domain are clamped to it. Quantizing a dequantized value yields the
// original code.
type Quantizer interface {
	Codec() Codec

	// Quantize encodes v relative to domain.
	Quantize(v r3.Vector, domain pointcloud.BoundingBox) Value

	// Dequantize reconstructs the vector a value was quantized from.
	Dequantize(q Value, domain pointcloud.BoundingBox) r3.Vector

	// Put writes q into buf, which must hold at least Codec().ValueSize() bytes.
	Put(buf []byte, q Value)

	// Read decodes a value from buf, which must hold at least Codec().ValueSize() bytes.
	Read(buf []byte) Value
}

const (
	narrowBits = 8

	packedBitsX = 11
	packedBitsY = 11
	packedBitsZ = 10
)

// QuantizeScalar linearly maps v in [lo,hi] to an integer code in [0, 2^bits-1], rounding to
// the nearest code. A degenerate range maps everything to 0.
func QuantizeScalar(v, lo, hi float64, bits uint) uint32 {
	maxCode := float64(uint32(1)<<bits - 1)
	span := hi - lo
	if !(span > 0) || math.IsNaN(v) {
		return 0
	}
	q := math.Round((v - lo) / span * maxCode)
	if q < 0 {
		return 0
	}
	if q > maxCode {
		return uint32(maxCode)
	}
	return uint32(q)
}

// DequantizeScalar is the inverse of QuantizeScalar.
func DequantizeScalar(q uint32, lo, hi float64, bits uint) float64 {
	maxCode := uint32(1)<<bits - 1
	if !(hi > lo) {
		return lo
	}
	if q > maxCode {
		q = maxCode
	}
	return lo + float64(q)/float64(maxCode)*(hi-lo)
}

// StepSize is the distance between two neighboring codes for a range quantized with bits.
func StepSize(lo, hi float64, bits uint) float64 {
	return (hi - lo) / float64(uint32(1)<<bits-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type wideQuantizer struct{}

func (wideQuantizer) Codec() Codec {
	return Wide
}

func (wideQuantizer) Quantize(v r3.Vector, domain pointcloud.BoundingBox) Value {
	return Value{codec: Wide, words: [3]uint32{
		math.Float32bits(float32(clamp(v.X, domain.Min.X, domain.Max.X))),
		math.Float32bits(float32(clamp(v.Y, domain.Min.Y, domain.Max.Y))),
		math.Float32bits(float32(clamp(v.Z, domain.Min.Z, domain.Max.Z))),
	}}
}

// Dequantize clamps to domain so a value read from a message never lands outside it.
func (wideQuantizer) Dequantize(q Value, domain pointcloud.BoundingBox) r3.Vector {
	return r3.Vector{
		X: clamp(float64(math.Float32frombits(q.words[0])), domain.Min.X, domain.Max.X),
		Y: clamp(float64(math.Float32frombits(q.words[1])), domain.Min.Y, domain.Max.Y),
		Z: clamp(float64(math.Float32frombits(q.words[2])), domain.Min.Z, domain.Max.Z),
	}
}

func (wideQuantizer) Put(buf []byte, q Value) {
	binary.LittleEndian.PutUint32(buf, q.words[0])
	binary.LittleEndian.PutUint32(buf[4:], q.words[1])
	binary.LittleEndian.PutUint32(buf[8:], q.words[2])
}

func (wideQuantizer) Read(buf []byte) Value {
	return Value{codec: Wide, words: [3]uint32{
		binary.LittleEndian.Uint32(buf),
		binary.LittleEndian.Uint32(buf[4:]),
		binary.LittleEndian.Uint32(buf[8:]),
	}}
}

type narrowQuantizer struct{}

func (narrowQuantizer) Codec() Codec {
	return Narrow
}

func (narrowQuantizer) Quantize(v r3.Vector, domain pointcloud.BoundingBox) Value {
	return Value{codec: Narrow, words: [3]uint32{
		QuantizeScalar(v.X, domain.Min.X, domain.Max.X, narrowBits),
		QuantizeScalar(v.Y, domain.Min.Y, domain.Max.Y, narrowBits),
		QuantizeScalar(v.Z, domain.Min.Z, domain.Max.Z, narrowBits),
	}}
}

func (narrowQuantizer) Dequantize(q Value, domain pointcloud.BoundingBox) r3.Vector {
	return r3.Vector{
		X: DequantizeScalar(q.words[0], domain.Min.X, domain.Max.X, narrowBits),
		Y: DequantizeScalar(q.words[1], domain.Min.Y, domain.Max.Y, narrowBits),
		Z: DequantizeScalar(q.words[2], domain.Min.Z, domain.Max.Z, narrowBits),
	}
}

func (narrowQuantizer) Put(buf []byte, q Value) {
	buf[0] = byte(q.words[0])
	buf[1] = byte(q.words[1])
	buf[2] = byte(q.words[2])
}

func (narrowQuantizer) Read(buf []byte) Value {
	return Value{codec: Narrow, words: [3]uint32{uint32(buf[0]), uint32(buf[1]), uint32(buf[2])}}
}

type packedQuantizer struct{}

func (packedQuantizer) Codec() Codec {
	return Packed
}

func (packedQuantizer) Quantize(v r3.Vector, domain pointcloud.BoundingBox) Value {
	x := QuantizeScalar(v.X, domain.Min.X, domain.Max.X, packedBitsX)
	y := QuantizeScalar(v.Y, domain.Min.Y, domain.Max.Y, packedBitsY)
	z := QuantizeScalar(v.Z, domain.Min.Z, domain.Max.Z, packedBitsZ)
	return Value{codec: Packed, words: [3]uint32{x | y<<packedBitsX | z<<(packedBitsX+packedBitsY)}}
}

func (packedQuantizer) Dequantize(q Value, domain pointcloud.BoundingBox) r3.Vector {
	word := q.words[0]
	x := word & (1<<packedBitsX - 1)
	y := (word >> packedBitsX) & (1<<packedBitsY - 1)
	z := word >> (packedBitsX + packedBitsY)
	return r3.Vector{
		X: DequantizeScalar(x, domain.Min.X, domain.Max.X, packedBitsX),
		Y: DequantizeScalar(y, domain.Min.Y, domain.Max.Y, packedBitsY),
		Z: DequantizeScalar(z, domain.Min.Z, domain.Max.Z, packedBitsZ),
	}
}

func (packedQuantizer) Put(buf []byte, q Value) {
	binary.LittleEndian.PutUint32(buf, q.words[0])
}

func (packedQuantizer) Read(buf []byte) Value {
	return Value{codec: Packed, words: [3]uint32{binary.LittleEndian.Uint32(buf)}}
}

// MaxError returns the largest per-axis reconstruction error c allows for values inside
// domain: half a quantization step for the integer codecs and float32 rounding for Wide.
func MaxError(c Codec, domain pointcloud.BoundingBox) r3.Vector {
	r := domain.Range()
	switch c {
	case Narrow:
		return r3.Vector{
			X: StepSize(0, r.X, narrowBits) / 2,
			Y: StepSize(0, r.Y, narrowBits) / 2,
			Z: StepSize(0, r.Z, narrowBits) / 2,
		}
	case Packed:
		return r3.Vector{
			X: StepSize(0, r.X, packedBitsX) / 2,
			Y: StepSize(0, r.Y, packedBitsY) / 2,
			Z: StepSize(0, r.Z, packedBitsZ) / 2,
		}
	case Wide:
		largest := domain.Min.Abs().Add(domain.Max.Abs())
		const float32Epsilon = 1.0 / (1 << 23)
		return largest.Mul(float32Epsilon)
	default:
		return r3.Vector{}
	}
}
