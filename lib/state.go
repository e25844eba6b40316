package lib

import (
	"fmt"
	"net"
)

// State is a connection state. A connection begins and ends in StateClosed;
// the two are told apart by history, not by a separate label.
type State int

const (
	StateClosed State = iota
	StateSynSent
	StateSynRcvd
	StateEstablished
	StateFinWait
	StateCloseWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynRcvd:
		return "SYN_RCVD"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait:
		return "FIN_WAIT"
	case StateCloseWait:
		return "CLOSE_WAIT"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Role tells which half of the exchange this endpoint drives.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// Action is what the state machine instructs its driver to do after an
// event. A nil Send means nothing goes out. The state machine itself never
// touches the channel.
type Action struct {
	Send *Segment
}

// Conn holds one endpoint's connection state. All mutation happens inside
// Open, Close and Deliver, one event at a time; the methods must not be
// invoked reentrantly for the same Conn.
type Conn struct {
	role       Role
	state      State
	localSeq   uint32 // SEQ of the last SYN or FIN this side sent
	remoteSeq  uint32 // last SEQ observed from the peer
	localPort  uint16
	remotePort uint16
	remoteAddr net.Addr
	windowSize uint16
	opened     bool // set once the connection first leaves CLOSED
}

func newConn(role Role, localPort, remotePort uint16, remoteAddr net.Addr, isn uint32) *Conn {
	return &Conn{
		role:       role,
		state:      StateClosed,
		localSeq:   isn,
		localPort:  localPort,
		remotePort: remotePort,
		remoteAddr: remoteAddr,
		windowSize: DefaultWindowSize,
	}
}

func (c *Conn) Role() Role           { return c.role }
func (c *Conn) State() State         { return c.state }
func (c *Conn) LocalSeq() uint32     { return c.localSeq }
func (c *Conn) RemoteSeq() uint32    { return c.remoteSeq }
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *Conn) newSegment(flags uint8, seq, ack uint32) *Segment {
	return &Segment{
		SourcePort:        c.localPort,
		DestinationPort:   c.remotePort,
		SequenceNumber:    seq,
		AcknowledgmentNum: ack,
		Flags:             flags,
		WindowSize:        c.windowSize,
	}
}

// Open starts the active open: send SYN, enter SYN_SENT. Initiator only.
func (c *Conn) Open() (Action, error) {
	if c.role != RoleInitiator {
		return Action{}, fmt.Errorf("open: only the initiator performs an active open")
	}
	if c.state != StateClosed || c.opened {
		return Action{}, fmt.Errorf("open: connection is %s, must be an unused CLOSED connection", c.state)
	}
	c.opened = true
	c.state = StateSynSent
	return Action{Send: c.newSegment(SYNFlag, c.localSeq, 0)}, nil
}

// Close starts this side's half of the teardown. For the initiator that is
// the active close out of ESTABLISHED (send FIN, enter FIN_WAIT); for the
// responder it is the explicit close out of CLOSE_WAIT (send FIN-ACK, enter
// CLOSED).
func (c *Conn) Close() (Action, error) {
	switch {
	case c.role == RoleInitiator && c.state == StateEstablished:
		c.localSeq = SeqIncrement(c.localSeq)
		c.state = StateFinWait
		return Action{Send: c.newSegment(FINFlag, c.localSeq, 0)}, nil

	case c.role == RoleResponder && c.state == StateCloseWait:
		c.localSeq = SeqIncrement(c.localSeq)
		c.state = StateClosed
		return Action{Send: c.newSegment(FINFlag|ACKFlag, c.localSeq, SeqIncrement(c.remoteSeq))}, nil

	default:
		return Action{}, fmt.Errorf("close: %s connection is %s", c.role, c.state)
	}
}

// Deliver feeds one inbound segment into the state machine and returns the
// segment to send in response, if any.
//
// An ACK that does not match the expected next sequence number is treated as
// a stale duplicate: discarded with no action, no error and no state change.
// Flags that are not legal for the current state return
// UnexpectedSegmentError and force the connection to CLOSED.
func (c *Conn) Deliver(seg *Segment) (Action, error) {
	switch c.state {
	case StateClosed:
		// Passive open: a fresh responder connection consumes the SYN here.
		if !c.opened && c.role == RoleResponder && seg.Flags == SYNFlag {
			c.opened = true
			c.remoteSeq = seg.SequenceNumber
			c.state = StateSynRcvd
			return Action{Send: c.newSegment(SYNFlag|ACKFlag, c.localSeq, SeqIncrement(c.remoteSeq))}, nil
		}
		// The final ACK of the teardown may land after this side already
		// reached CLOSED; it is harmless.
		if c.opened && seg.Flags == ACKFlag {
			return Action{}, nil
		}
		return c.abort(seg)

	case StateSynSent:
		if seg.Flags == SYNFlag|ACKFlag {
			if seg.AcknowledgmentNum != SeqIncrement(c.localSeq) {
				return Action{}, nil // misdirected or stale SYN-ACK
			}
			c.remoteSeq = seg.SequenceNumber
			c.state = StateEstablished
			return Action{Send: c.newSegment(ACKFlag, SeqIncrement(c.localSeq), SeqIncrement(c.remoteSeq))}, nil
		}
		return c.abort(seg)

	case StateSynRcvd:
		if seg.Flags == ACKFlag {
			if seg.AcknowledgmentNum != SeqIncrement(c.localSeq) {
				return Action{}, nil
			}
			c.state = StateEstablished
			return Action{}, nil
		}
		return c.abort(seg)

	case StateEstablished:
		if seg.Flags == ACKFlag {
			// replay of the final handshake ACK
			return Action{}, nil
		}
		if c.role == RoleResponder && seg.Flags == FINFlag {
			c.remoteSeq = seg.SequenceNumber
			c.state = StateCloseWait
			return Action{Send: c.newSegment(ACKFlag, SeqIncrement(c.localSeq), SeqIncrement(c.remoteSeq))}, nil
		}
		return c.abort(seg)

	case StateFinWait:
		if seg.Flags == ACKFlag {
			// The peer acknowledged our FIN; its own FIN-ACK is still to come.
			return Action{}, nil
		}
		if seg.Flags == FINFlag|ACKFlag {
			if seg.AcknowledgmentNum != SeqIncrement(c.localSeq) {
				return Action{}, nil
			}
			c.remoteSeq = seg.SequenceNumber
			c.state = StateClosed
			return Action{Send: c.newSegment(ACKFlag, SeqIncrement(c.localSeq), SeqIncrement(c.remoteSeq))}, nil
		}
		return c.abort(seg)

	case StateCloseWait:
		if seg.Flags == ACKFlag || seg.Flags == FINFlag {
			// duplicate of the peer's FIN or a stray ACK
			return Action{}, nil
		}
		return c.abort(seg)

	default:
		return c.abort(seg)
	}
}

// abort forces the connection to CLOSED and reports the offending segment.
func (c *Conn) abort(seg *Segment) (Action, error) {
	err := &UnexpectedSegmentError{State: c.state, Flags: seg.Flags}
	c.state = StateClosed
	return Action{}, err
}
