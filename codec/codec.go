// Package codec implements the fixed-width numeric encodings used to store quantized point
// positions and colors. A Codec is chosen once per message and every attribute in that message
// uses it.
//
// Wire sizes per three component vector:
//
//	wide    3 x float32, 12 bytes
//	narrow  3 x uint8, 3 bytes
//	packed  1 x uint32, 4 bytes; x in bits 0-10, y in bits 11-21, z in bits 22-31
//
// All multi-byte values are little-endian.
package codec

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Codec identifies one of the fixed-width encodings. Its numeric value is written to the wire.
type Codec uint8

const (
	// Wide keeps position and color as 32 bit floats.
	Wide Codec = iota
	// Narrow quantizes position and color to 8 bits per component.
	Narrow
	// Packed packs position and color each into a single 32 bit word.
	Packed
)

// ErrUnknownCodec is returned for codec identifiers or names that are not recognized.
var ErrUnknownCodec = errors.New("unknown codec")

var codecNames = map[Codec]string{
	Wide:   "wide",
	Narrow: "narrow",
	Packed: "packed",
}

// legacyNames are the component layout names some producers use for the same codecs.
var legacyNames = map[string]Codec{
	"3x32p_3x8c":  Wide,
	"3x32p_3x32c": Wide,
	"3x8p_3x8c":   Narrow,
	"1x32p_1x32c": Packed,
}

// String returns the name of the codec.
func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// Validate returns ErrUnknownCodec if c is not one of the defined codecs.
func (c Codec) Validate() error {
	if _, ok := codecNames[c]; !ok {
		return errors.Wrapf(ErrUnknownCodec, "id %d", uint8(c))
	}
	return nil
}

// ParseCodec returns the codec with the given name. Matching is case-insensitive.
func ParseCodec(name string) (Codec, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for c, n := range codecNames {
		if n == lower {
			return c, nil
		}
	}
	if c, ok := legacyNames[lower]; ok {
		return c, nil
	}
	return 0, errors.Wrapf(ErrUnknownCodec, "%q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := ParseCodec(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Quantizer returns the quantizer implementing c.
func (c Codec) Quantizer() (Quantizer, error) {
	switch c {
	case Wide:
		return wideQuantizer{}, nil
	case Narrow:
		return narrowQuantizer{}, nil
	case Packed:
		return packedQuantizer{}, nil
	default:
		return nil, c.Validate()
	}
}

// ValueSize is the number of bytes one encoded vector takes.
func (c Codec) ValueSize() int {
	switch c {
	case Wide:
		return 12
	case Narrow:
		return 3
	case Packed:
		return 4
	default:
		return 0
	}
}

// AttributeSize is the number of bytes one encoded position and color pair takes.
func (c Codec) AttributeSize() int {
	return 2 * c.ValueSize()
}
