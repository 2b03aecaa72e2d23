package transport

import "errors"

// Error taxonomy. Request and Stream return one of these (wrapped with
// detail), or nil; the registry has its own errors.
var (
	// ErrGeneric covers generic failure or a non-overflow timeout.
	ErrGeneric = errors.New("transport: generic failure")
	// ErrOverflow is returned when a byte count exceeds a static or
	// caller-supplied capacity.
	ErrOverflow = errors.New("transport: response overflow")
	// ErrTimeout is a distinguished wait timeout. Request returns it
	// collapsed into ErrGeneric, with ErrTimeout's text in the error
	// message.
	ErrTimeout = errors.New("transport: request timed out")
	// ErrInvalidArgs covers malformed local inputs.
	ErrInvalidArgs = errors.New("transport: invalid arguments")
)

// ErrTag is the short ASCII tag carried in an ERR message's args field.
type ErrTag string

const (
	TagNoFunc      ErrTag = "NOFUNC"
	TagOverflow    ErrTag = "OVERFLOW"
	TagInvalidArgs ErrTag = "INVALID_ARGS"
	TagTimeout     ErrTag = "TIMEOUT"
	TagFail        ErrTag = "FAIL"
)
