package lib

import (
	"fmt"
	"net"
	"strconv"
	"time"

	rp "github.com/Clouded-Sabre/ringpool/lib"
)

// Channel is the datagram substrate the drivers exchange segments over. It
// guarantees nothing: datagrams may be dropped, delayed or reordered by the
// implementation underneath.
//
// Receive blocks for at most timeout and returns ErrChannelTimeout when
// nothing arrived in time; a timeout of zero or less blocks indefinitely.
type Channel interface {
	Send(peer net.Addr, data []byte) error
	Receive(timeout time.Duration) (net.Addr, []byte, error)
	LocalAddr() net.Addr
	Close() error
}

// UDPChannel adapts a UDP socket to the Channel contract. Receive buffers
// are drawn from a ring pool so steady-state reads do not allocate
// MTU-sized slices.
type UDPChannel struct {
	conn *net.UDPConn
	pool *rp.RingPool
}

// NewUDPChannel binds a UDP socket on localAddr ("host:port").
func NewUDPChannel(localAddr string, poolSize, bufLength int) (*UDPChannel, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("udp channel: resolving %s: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp channel: binding %s: %w", localAddr, err)
	}

	return &UDPChannel{
		conn: conn,
		pool: newBufferPool(poolSize, bufLength),
	}, nil
}

func (u *UDPChannel) Send(peer net.Addr, data []byte) error {
	_, err := u.conn.WriteTo(data, peer)
	return err
}

func (u *UDPChannel) Receive(timeout time.Duration) (net.Addr, []byte, error) {
	if timeout > 0 {
		if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, nil, err
		}
	} else {
		if err := u.conn.SetReadDeadline(time.Time{}); err != nil {
			return nil, nil, err
		}
	}

	element := u.pool.GetElement()
	defer u.pool.ReturnElement(element)
	buffer := element.Data.(*DatagramBuffer)

	n, addr, err := u.conn.ReadFromUDP(buffer.Buffer())
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, ErrChannelTimeout
		}
		return nil, nil, err
	}
	buffer.SetLength(n)

	// The element goes back to the pool on return, so hand out a copy of
	// just the datagram bytes.
	data := make([]byte, n)
	copy(data, buffer.GetSlice())
	return addr, data, nil
}

func (u *UDPChannel) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPChannel) Close() error {
	return u.conn.Close()
}

// addrPort extracts the transport port of a channel endpoint for stamping
// into segment headers.
func addrPort(addr net.Addr) uint16 {
	if a, ok := addr.(*net.UDPAddr); ok {
		return uint16(a.Port)
	}
	if _, portStr, err := net.SplitHostPort(addr.String()); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			return uint16(port)
		}
	}
	return 0
}
