package comm

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("transport not connected")
	ErrPublishRejected   = errors.New("publish rejected by broker")
	ErrPublishTimeout    = errors.New("publish not acknowledged in time")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrDecode            = errors.New("payload decode failed")
	ErrBufferUnavailable = errors.New("outbound buffer unavailable")
	ErrBufferKeyShape    = errors.New("unexpected buffer key shape")
	ErrNodeNotFound      = errors.New("no live node for identity")
	ErrIdentityRetired   = errors.New("identity is retired")
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrConnection        = errors.New("connection failed")
	ErrCredentials       = errors.New("credentials rejected")
)

// ConnectionError reports a failed connect attempt for one node. It matches
// ErrConnection with errors.Is and unwraps to the underlying cause.
type ConnectionError struct {
	Identity string
	Broker   string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s to %s: %v", e.Identity, e.Broker, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
