package readerlink

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("link config is nil")

	// ErrHandlerNil indicates that a nil Handler was provided.
	ErrHandlerNil = errors.New("link handler is nil")

	// ErrLinkClosed indicates that the link has been closed and cannot be reopened.
	ErrLinkClosed = errors.New("link closed")

	// ErrInvalidTransition is returned when a state transition is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)
