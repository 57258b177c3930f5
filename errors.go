package zrtpfilter

import "errors"

// Setup and lifecycle errors.
var (
	// ErrNoEngine indicates New was called without a ZRTP engine.
	ErrNoEngine = errors.New("zrtpfilter: no ZRTP engine")

	// ErrPadNotLinked indicates an output pad was not linked before
	// Initialize.
	ErrPadNotLinked = errors.New("zrtpfilter: output pad not linked")

	// ErrNotInitialized indicates the engine has not been initialized.
	ErrNotInitialized = errors.New("zrtpfilter: engine not initialized")

	// ErrAlreadyInitialized indicates Initialize was called twice.
	ErrAlreadyInitialized = errors.New("zrtpfilter: engine already initialized")

	// ErrClosed indicates the filter was closed.
	ErrClosed = errors.New("zrtpfilter: filter closed")

	// ErrInvalidSSRC indicates a local SSRC of zero.
	ErrInvalidSSRC = errors.New("zrtpfilter: SSRC must be non-zero")

	// ErrInvalidOptions indicates a configuration value is out of range.
	ErrInvalidOptions = errors.New("zrtpfilter: invalid options")
)

// Multi-stream errors.
var (
	// ErrMasterStream indicates multi-stream parameters were set on a
	// stream that already handed out its own parameters as master.
	ErrMasterStream = errors.New("zrtpfilter: cannot set multi-stream parameters on master stream")

	// ErrNoMultiStreamParams indicates an empty parameter blob.
	ErrNoMultiStreamParams = errors.New("zrtpfilter: empty multi-stream parameters")
)

// Per-buffer errors. The session continues after any of these.
var (
	// ErrEmptyBuffer indicates a zero length buffer was pushed.
	ErrEmptyBuffer = errors.New("zrtpfilter: empty buffer")

	// ErrPushFailed indicates the downstream pad rejected a buffer.
	ErrPushFailed = errors.New("zrtpfilter: push failed")
)
