package socialclient

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrLoadFailed is returned when conversations could not be fetched and nothing is cached.
	ErrLoadFailed = errors.New("socialclient: conversations unavailable")
	// ErrChannelClosed is returned when a realtime call could not be written
	// because the channel has shut down. The server never saw the request.
	ErrChannelClosed = errors.New("socialclient: realtime channel closed")
	// ErrTimeout is returned when a realtime call gets no response in time.
	// The server may still have applied the request.
	ErrTimeout = errors.New("socialclient: request timed out")
	// ErrReplyLost is returned when the channel closed after the request was
	// written but before its response arrived.
	ErrReplyLost = errors.New("socialclient: realtime channel closed before reply")
)

// RemoteError is a domain error reported by the server over either channel.
type RemoteError struct {
	Event   string
	Code    string
	Message string
	Hint    string
	Status  int // HTTP status, zero on the realtime channel
}

func (e *RemoteError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// unavailable reports whether err means the channel could not answer, as
// opposed to the server rejecting the request.
func unavailable(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	return !errors.As(err, &remote)
}

// notSent reports whether the request never reached the server, which is the
// only case where a non-idempotent write may be retried on another channel.
func notSent(err error) bool {
	return errors.Is(err, ErrChannelClosed)
}

// mayHaveApplied reports whether a write failed without a verdict from the server.
func mayHaveApplied(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrReplyLost)
}
