package autoid

import "errors"

var (
	// ErrInvalidState indicates that a command is not allowed in the current device state.
	// All command rejections wrap it.
	ErrInvalidState = errors.New("invalid state")

	// ErrScanRunning indicates that a scan start was requested while a scan is active.
	ErrScanRunning = newStateError("scan already running")

	// ErrLinkDown indicates that a scan start was requested while the reader link is disconnected.
	ErrLinkDown = newStateError("reader link disconnected")

	// ErrScanNotRunning indicates that a scan stop was requested while no scan is active.
	ErrScanNotRunning = newStateError("no scan running")
)

var (
	// ErrMalformedReading indicates that a frame payload is not a valid reading document.
	ErrMalformedReading = errors.New("malformed reading")
)

// stateError is a command rejection that also matches ErrInvalidState with errors.Is.
type stateError struct{ msg string }

func newStateError(msg string) error { return &stateError{msg: msg} }

func (e *stateError) Error() string { return "invalid state: " + e.msg }

func (e *stateError) Unwrap() error { return ErrInvalidState }
