package dive

import (
	"errors"
	"fmt"
)

// Sentinels matched by DecodeError.Is.
var (
	ErrBadMagic     = errors.New("bad header type")
	ErrBadTimestamp = errors.New("bad timestamp")
	ErrUnknownMode  = errors.New("unknown dive mode")
	ErrUnknownTag   = errors.New("unknown record tag")
	ErrCrcMismatch  = errors.New("record crc mismatch")
	ErrTagMismatch  = errors.New("record tag mismatch")
	ErrTruncated    = errors.New("truncated data")
)

// DecodeError reports bad dive data. Re-reading the object returns the same
// bytes, so these are never retried.
type DecodeError struct {
	Err    error
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(err error, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Err: err, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// IsDecode reports whether err is a data-level decode failure.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
