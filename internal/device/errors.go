package device

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("printer not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrLink             = errors.New("link error")
	ErrHandleInvalid    = errors.New("handle invalid")

	// ErrDisconnected is returned by a Link when the device went away mid-transfer.
	ErrDisconnected = errors.New("device disconnected")
)

// LinkError reports a write rejected by the underlying link.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLink, e.Op, e.Err)
}

func (e *LinkError) Unwrap() []error {
	return []error{ErrLink, e.Err}
}
