package nvme

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferTooShort is returned when a buffer is smaller than the layout it
	// is decoded as.
	ErrBufferTooShort = errors.New("buffer too short")

	// ErrBufferWrongSize is returned by decoders whose layout has no slack for
	// larger buffers.
	ErrBufferWrongSize = errors.New("buffer wrong size")

	// ErrFieldTooLong is returned when text does not fit a fixed-width field.
	ErrFieldTooLong = errors.New("field too long")
)

// BufferError reports a length contract violation for one entity.
type BufferError struct {
	Err    error // ErrBufferTooShort or ErrBufferWrongSize
	Entity string
	Want   int
	Got    int
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("%s: %v: need %d bytes, got %d", e.Entity, e.Err, e.Want, e.Got)
}

func (e *BufferError) Unwrap() error { return e.Err }

// checkMin enforces a minimum length; extra trailing bytes are allowed.
func checkMin(entity string, buf []byte, want int) error {
	if len(buf) < want {
		return &BufferError{Err: ErrBufferTooShort, Entity: entity, Want: want, Got: len(buf)}
	}
	return nil
}

// checkExact enforces an exact length.
func checkExact(entity string, buf []byte, want int) error {
	if err := checkMin(entity, buf, want); err != nil {
		return err
	}
	if len(buf) != want {
		return &BufferError{Err: ErrBufferWrongSize, Entity: entity, Want: want, Got: len(buf)}
	}
	return nil
}
