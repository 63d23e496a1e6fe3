package codec

import "math"

// Value is a quantized three component vector. The interpretation of the words depends on the
// codec: float32 bits for Wide, one 8 bit code per word for Narrow, and a single packed word
// for Packed.
type Value struct {
	codec Codec
	words [3]uint32
}

// Codec returns the codec the value was quantized with.
func (v Value) Codec() Codec {
	return v.codec
}

// Words returns the raw codes.
func (v Value) Words() [3]uint32 {
	return v.words
}

// Finite reports whether every component of v is a finite number. Only Wide values, which carry
// raw float32 bits, can fail.
func (v Value) Finite() bool {
	if v.codec != Wide {
		return true
	}
	for _, w := range v.words {
		f := float64(math.Float32frombits(w))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
