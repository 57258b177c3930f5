package srtp

import "errors"

// Transform errors. These are per-packet and never fatal to a session.
var (
	// ErrNoContext indicates no crypto context is bound, or it was closed.
	ErrNoContext = errors.New("srtp: no crypto context")

	// ErrAuthFailed indicates the authentication tag did not verify.
	ErrAuthFailed = errors.New("srtp: authentication failed")

	// ErrReplay indicates the packet index was already seen or is too old.
	ErrReplay = errors.New("srtp: replayed packet")

	// ErrMalformed indicates the packet is too short or its header is invalid.
	ErrMalformed = errors.New("srtp: malformed packet")
)

// Context creation errors.
var (
	// ErrUnsupportedCipher indicates an unknown cipher identifier.
	ErrUnsupportedCipher = errors.New("srtp: unsupported cipher")

	// ErrUnsupportedAuth indicates an authentication algorithm that is not
	// implemented.
	ErrUnsupportedAuth = errors.New("srtp: unsupported authentication algorithm")

	// ErrInvalidKeyLength indicates master key, salt or derived length is
	// out of range.
	ErrInvalidKeyLength = errors.New("srtp: invalid key length")
)

// Result codes reported for the last unprotect operation.
const (
	ResultOK         = 1
	ResultNoContext  = 0
	ResultAuthFailed = -1
	ResultReplay     = -2
)

// ResultCode maps a transform error to the numeric result convention used
// in session statistics: 1 success, 0 no context, -1 authentication
// failure, -2 replay. Malformed packets count as authentication failures.
func ResultCode(err error) int {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrReplay):
		return ResultReplay
	case errors.Is(err, ErrNoContext):
		return ResultNoContext
	default:
		return ResultAuthFailed
	}
}
