package lib

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/netlabsim/simpletcp/config"
)

// Initiator drives the active side of the connection lifecycle: it opens
// with the three-way handshake and closes with the FIN exchange. All channel
// I/O happens here; the state machine only tells it what to send.
type Initiator struct {
	channel   Channel
	localPort uint16
	config    *config.Config
}

func NewInitiator(channel Channel, cfg *config.Config) *Initiator {
	return &Initiator{
		channel:   channel,
		localPort: addrPort(channel.LocalAddr()),
		config:    cfg,
	}
}

// Open performs the active open against peer and returns the established
// connection. If the responder stays silent past the configured handshake
// timeout, ErrHandshakeTimeout is returned; the segment is not resent.
func (i *Initiator) Open(peer net.Addr) (*Conn, error) {
	isn, err := GenerateISN()
	if err != nil {
		return nil, fmt.Errorf("open: generating ISN: %w", err)
	}
	conn := newConn(RoleInitiator, i.localPort, addrPort(peer), peer, isn)

	action, err := conn.Open()
	if err != nil {
		return nil, err
	}
	if err := transmit(i.channel, "initiator", conn, action); err != nil {
		return nil, err
	}

	if err := i.pump(conn, i.config.HandshakeDuration(), StateEstablished, ErrHandshakeTimeout); err != nil {
		return nil, err
	}
	log.Printf("[initiator] connection to %s is %s", peer, conn.State())
	return conn, nil
}

// Close performs the active close. The connection must be ESTABLISHED.
func (i *Initiator) Close(conn *Conn) error {
	action, err := conn.Close()
	if err != nil {
		return err
	}
	if err := transmit(i.channel, "initiator", conn, action); err != nil {
		return err
	}

	if err := i.pump(conn, i.config.TeardownDuration(), StateClosed, ErrTeardownTimeout); err != nil {
		return err
	}
	log.Printf("[initiator] connection to %s is %s", conn.RemoteAddr(), conn.State())
	return nil
}

// pump feeds inbound segments into conn until it reaches want or the wait
// elapses. Malformed segments are dropped and waiting continues; a protocol
// violation surfaces after the state machine has already aborted to CLOSED.
func (i *Initiator) pump(conn *Conn, wait time.Duration, want State, timeoutErr error) error {
	deadline := time.Now().Add(wait)
	for conn.State() != want {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return timeoutErr
		}

		from, data, err := i.channel.Receive(remaining)
		if errors.Is(err, ErrChannelTimeout) {
			return timeoutErr
		}
		if err != nil {
			return err
		}

		seg := &Segment{}
		if err := seg.Unmarshal(data); err != nil {
			log.Printf("[initiator] dropping segment from %s: %s", from, err)
			continue
		}
		if seg.DestinationPort != i.localPort {
			log.Printf("[initiator] dropping misdirected segment %s from %s", seg, from)
			continue
		}

		if i.config.Debug {
			log.Printf("[initiator] received %s from %s", seg, from)
		}
		action, err := conn.Deliver(seg)
		if err != nil {
			return fmt.Errorf("connection aborted, now %s: %w", conn.State(), err)
		}
		if err := transmit(i.channel, "initiator", conn, action); err != nil {
			return err
		}
	}
	return nil
}

// transmit sends an action's segment, if any, and traces the transition.
func transmit(channel Channel, role string, conn *Conn, action Action) error {
	if action.Send == nil {
		return nil
	}
	data, err := action.Send.Marshal()
	if err != nil {
		return err
	}
	if err := channel.Send(conn.RemoteAddr(), data); err != nil {
		return fmt.Errorf("sending %s to %s: %w", FlagsString(action.Send.Flags), conn.RemoteAddr(), err)
	}
	log.Printf("[%s] sent %s, state %s", role, action.Send, conn.State())
	return nil
}
