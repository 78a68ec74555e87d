package backend

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when Interrupt stopped a stream. It is not a
// failure; the Summary returned alongside it describes the partial output.
var ErrInterrupted = errors.New("completion interrupted")

// NetworkError covers transport failures, non-2xx statuses, server-sent
// error events and streams that stop making progress.
type NetworkError struct {
	Op  string // "connect", "status", "stream", "read", "stall"
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("backend %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolDecodeError is a single event whose payload could not be decoded.
// The stream skips such events.
type ProtocolDecodeError struct {
	Data string
	Err  error
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("decode stream event %q: %v", truncate(e.Data, 80), e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is, or wraps, a NetworkError.
func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// IsProtocolDecode reports whether err is, or wraps, a ProtocolDecodeError.
func IsProtocolDecode(err error) bool {
	var e *ProtocolDecodeError
	return errors.As(err, &e)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
