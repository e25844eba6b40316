package lib

import (
	"errors"
	"fmt"
)

// MalformedSegmentError is returned by the segment codec when bytes cannot
// be parsed into a valid flag/seq/ack combination. Drivers drop the segment
// and keep waiting; the error is never fatal to a connection.
type MalformedSegmentError struct {
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return "malformed segment: " + e.Reason
}

// UnexpectedSegmentError is raised when a segment's flags are not legal for
// the connection's current state. It is fatal: the connection is forced to
// CLOSED before the error is surfaced.
type UnexpectedSegmentError struct {
	State State
	Flags uint8
}

func (e *UnexpectedSegmentError) Error() string {
	return fmt.Sprintf("unexpected segment: received %s while %s", FlagsString(e.Flags), e.State)
}

// TimeoutError reports that no matching segment arrived within the allotted
// wait. It satisfies net.Error's Timeout contract.
type TimeoutError struct {
	op string
}

func (e *TimeoutError) Error() string {
	return e.op + " timed out"
}

func (e *TimeoutError) Timeout() bool {
	return true
}

func (e *TimeoutError) Temporary() bool {
	return false
}

var (
	ErrHandshakeTimeout = &TimeoutError{op: "handshake"}
	ErrTeardownTimeout  = &TimeoutError{op: "teardown"}

	// ErrChannelTimeout is the explicit no-data-yet result of Channel.Receive.
	ErrChannelTimeout = &TimeoutError{op: "channel receive"}

	// ErrResponderStopped is returned by Accept once Stop has been called.
	// Stopping is terminal.
	ErrResponderStopped = errors.New("responder is stopped")
)
