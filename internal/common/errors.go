package common

import (
	"errors"
	"fmt"
)

var ErrUnsupported = fmt.Errorf("unsupported operation")
var ErrCorrupt    = fmt.Errorf("corrupt or invalid data")
var ErrNotFound   = fmt.Errorf("not found")

var (
	ErrInvalidSlice      = errors.New("invalid slice to array conversion")
	ErrInvalidHeaderFile = errors.New("invalid SPL header file, ensure the path is valid")
	ErrInvalidSplFile    = errors.New("invalid SPL file, ensure the path is valid")

	// ErrCRCFailed reports a header whose checksum was deliberately
	// invalidated, so the boot ROM falls through to the backup offset.
	ErrCRCFailed = errors.New("header checksum marked as failed")
)

// HeaderLenError is returned when a buffer is too short to hold a header.
type HeaderLenError struct {
	Actual   int
	Expected int
}

func (e *HeaderLenError) Error() string {
	return fmt.Sprintf("invalid header len: %d, expected: %d", e.Actual, e.Expected)
}

func (e *HeaderLenError) Is(target error) bool { return target == ErrCorrupt }

// SPLLenError is returned for empty or oversized SPL payloads.
type SPLLenError struct {
	Actual int
	Max    int
}

func (e *SPLLenError) Error() string {
	return fmt.Sprintf("invalid SPL len: %d, max: %d", e.Actual, e.Max)
}

type ChecksumError struct {
	Want uint32 // stored in the header
	Got  uint32 // computed over the payload
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: header has 0x%08x, payload sums to 0x%08x", e.Want, e.Got)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrCorrupt }
