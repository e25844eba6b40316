package lib

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/netlabsim/simpletcp/config"
)

// Responder drives the passive side: it accepts handshakes and performs the
// passive close. Connections completing their handshake are tracked in a
// temporary map keyed by peer address until the final ACK arrives.
//
// A Responder is a sequential participant; Accept, AwaitClose and Close must
// not be called concurrently with each other.
type Responder struct {
	channel       Channel
	localPort     uint16
	config        *config.Config
	tempConnMap   map[string]*Conn // handshakes in progress
	connectionMap map[string]*Conn // established connections
	stopped       bool
}

func NewResponder(channel Channel, cfg *config.Config) *Responder {
	return &Responder{
		channel:       channel,
		localPort:     addrPort(channel.LocalAddr()),
		config:        cfg,
		tempConnMap:   make(map[string]*Conn),
		connectionMap: make(map[string]*Conn),
	}
}

// Accept blocks until a handshake completes and returns the established
// connection. Repeated calls yield the lazy sequence of accepted
// connections, one per completed handshake, until Stop is called.
//
// While no handshake is in flight Accept waits forever; once a SYN-ACK is
// outstanding the configured handshake timeout applies, and expiry surfaces
// as ErrHandshakeTimeout with the half-open peers discarded.
func (r *Responder) Accept() (*Conn, error) {
	if r.stopped {
		return nil, ErrResponderStopped
	}

	for {
		var timeout time.Duration // zero blocks indefinitely
		if len(r.tempConnMap) > 0 {
			timeout = r.config.HandshakeDuration()
		}

		from, data, err := r.channel.Receive(timeout)
		if errors.Is(err, ErrChannelTimeout) {
			for key := range r.tempConnMap {
				log.Printf("[responder] handshake with %s never completed", key)
				delete(r.tempConnMap, key)
			}
			return nil, ErrHandshakeTimeout
		}
		if err != nil {
			r.stopped = true
			return nil, fmt.Errorf("responder stopped: %w", err)
		}

		seg, ok := r.decode(from, data)
		if !ok {
			continue
		}
		if conn := r.dispatch(from, seg); conn != nil {
			log.Printf("[responder] connection from %s is %s", from, conn.State())
			return conn, nil
		}
	}
}

// AwaitClose pumps inbound segments for conn until the peer's FIN has been
// acknowledged (CLOSE_WAIT). With responderAutoClose set, the closing
// FIN-ACK goes out immediately and the connection ends up CLOSED; otherwise
// the application completes the teardown with an explicit Close call.
func (r *Responder) AwaitClose(conn *Conn) error {
	deadline := time.Now().Add(r.config.TeardownDuration())
	for conn.State() == StateEstablished {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTeardownTimeout
		}

		from, data, err := r.channel.Receive(remaining)
		if errors.Is(err, ErrChannelTimeout) {
			return ErrTeardownTimeout
		}
		if err != nil {
			return err
		}

		seg, ok := r.decode(from, data)
		if !ok {
			continue
		}
		if from.String() != conn.RemoteAddr().String() {
			r.dispatch(from, seg) // some other peer's segment
			continue
		}

		if r.config.Debug {
			log.Printf("[responder] received %s from %s", seg, from)
		}
		action, err := conn.Deliver(seg)
		if err != nil {
			delete(r.connectionMap, from.String())
			return fmt.Errorf("connection aborted, now %s: %w", conn.State(), err)
		}
		if err := transmit(r.channel, "responder", conn, action); err != nil {
			return err
		}
	}

	if conn.State() == StateCloseWait && r.config.ResponderAutoClose {
		return r.Close(conn)
	}
	return nil
}

// Close completes the passive close: the peer's FIN must already have been
// acknowledged (CLOSE_WAIT); the closing FIN-ACK goes out and the
// connection reaches CLOSED.
func (r *Responder) Close(conn *Conn) error {
	action, err := conn.Close()
	if err != nil {
		return err
	}
	if err := transmit(r.channel, "responder", conn, action); err != nil {
		return err
	}
	delete(r.connectionMap, conn.RemoteAddr().String())
	log.Printf("[responder] connection from %s is %s", conn.RemoteAddr(), conn.State())
	return nil
}

// Stop shuts the responder down. Stopping is terminal: Accept fails from
// here on.
func (r *Responder) Stop() error {
	r.stopped = true
	return r.channel.Close()
}

// decode parses and screens one datagram. Malformed and misdirected
// segments are dropped here, and the responder keeps waiting.
func (r *Responder) decode(from net.Addr, data []byte) (*Segment, bool) {
	seg := &Segment{}
	if err := seg.Unmarshal(data); err != nil {
		log.Printf("[responder] dropping segment from %s: %s", from, err)
		return nil, false
	}
	if seg.DestinationPort != r.localPort {
		log.Printf("[responder] dropping misdirected segment %s from %s", seg, from)
		return nil, false
	}
	return seg, true
}

// dispatch routes a segment to the right connection, creating one for a
// fresh SYN. It returns a connection exactly when that segment completed
// its handshake.
func (r *Responder) dispatch(from net.Addr, seg *Segment) *Conn {
	key := from.String()

	if conn, ok := r.connectionMap[key]; ok {
		action, err := conn.Deliver(seg)
		if err != nil {
			log.Printf("[responder] connection from %s aborted: %s", key, err)
			delete(r.connectionMap, key)
			return nil
		}
		if err := transmit(r.channel, "responder", conn, action); err != nil {
			log.Printf("[responder] %s", err)
		}
		return nil
	}

	if conn, ok := r.tempConnMap[key]; ok {
		action, err := conn.Deliver(seg)
		if err != nil {
			log.Printf("[responder] handshake with %s aborted: %s", key, err)
			delete(r.tempConnMap, key)
			return nil
		}
		if err := transmit(r.channel, "responder", conn, action); err != nil {
			log.Printf("[responder] %s", err)
			return nil
		}
		if conn.State() == StateEstablished {
			delete(r.tempConnMap, key)
			r.connectionMap[key] = conn
			return conn
		}
		return nil
	}

	if seg.Flags != SYNFlag {
		log.Printf("[responder] dropping %s from unknown peer %s", seg, from)
		return nil
	}

	isn, err := GenerateISN()
	if err != nil {
		log.Printf("[responder] generating ISN: %s", err)
		return nil
	}
	conn := newConn(RoleResponder, r.localPort, seg.SourcePort, from, isn)
	action, err := conn.Deliver(seg)
	if err != nil {
		log.Printf("[responder] rejecting SYN from %s: %s", from, err)
		return nil
	}
	r.tempConnMap[key] = conn
	if err := transmit(r.channel, "responder", conn, action); err != nil {
		log.Printf("[responder] %s", err)
		delete(r.tempConnMap, key)
	}
	return nil
}
