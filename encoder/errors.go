package encoder

import (
	"github.com/pkg/errors"

	"go.viam.com/pcgrid/codec"
)

var (
	// ErrTruncatedHeader is returned when a message is shorter than HeaderSize.
	ErrTruncatedHeader = errors.New("message shorter than header")
	// ErrMalformedHeader is returned when a header describes a grid that cannot exist.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrTruncatedCell is returned when a message ends before every declared attribute.
	ErrTruncatedCell = errors.New("message ends inside cell data")
	// ErrMalformedCell is returned when a cell holds a value no encoder writes, such as a NaN
	// position in a Wide message.
	ErrMalformedCell = errors.New("malformed cell data")
)

// IsFormatError reports whether err was caused by a malformed message rather than by
// configuration or I/O.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrTruncatedHeader) ||
		errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrTruncatedCell) ||
		errors.Is(err, ErrMalformedCell) ||
		errors.Is(err, codec.ErrUnknownCodec)
}
