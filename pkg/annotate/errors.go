package annotate

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDecode is returned when the raw bytes are not a supported image.
	ErrDecode = errors.New("annotate: decode failed")

	// ErrEncode is returned when the composited canvas cannot be encoded.
	ErrEncode = errors.New("annotate: encode failed")

	// ErrTooLarge is wrapped by the DecodeError for sources above MaxPixels.
	ErrTooLarge = errors.New("annotate: image too large")

	// ErrEmptyImage is returned for zero-length input.
	ErrEmptyImage = errors.New("annotate: empty image")

	// ErrInvalidColor is returned by ParseColor.
	ErrInvalidColor = errors.New("annotate: invalid color")
)

// DecodeError carries the decoder's own message.
type DecodeError struct {
	Format string // sniffed format, if the header was recognised
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("annotate: decode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("annotate: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for every DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
