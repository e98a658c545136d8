package simulator

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("simulator config is nil")

	// ErrAlreadyInitialized indicates that Initialize was called twice.
	ErrAlreadyInitialized = errors.New("simulator already initialized")

	// ErrEndpointClosed indicates that the endpoint has been shut down.
	ErrEndpointClosed = errors.New("simulator endpoint closed")
)
