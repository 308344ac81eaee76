package tilejpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat indicates a JPEG the tile engine cannot address:
	// a non-baseline variant, a missing or zero restart interval, or a
	// restart structure that does not tile the image evenly.
	ErrInvalidFormat = errors.New("tilejpeg: invalid format")

	// ErrInputEmpty indicates an empty file or a first read that returned
	// no bytes.
	ErrInputEmpty = errors.New("tilejpeg: input empty")
)

// DecodeError reports a codec failure during a region read. It carries the
// originating file so multi-JPEG slides can point at the broken member.
// A DecodeError aborts only the request that hit it; the file and its tile
// index remain usable.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tilejpeg: decoding %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
