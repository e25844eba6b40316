package lib

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/netlabsim/simpletcp/config"
)

func simulatorConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LossRate = 0
	cfg.CorruptRate = 0
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	return cfg
}

func TestLossyChannelDropsEverythingAtFullLoss(t *testing.T) {
	a, b := newMemChannelPair(9800, 8800)
	cfg := simulatorConfig()
	cfg.LossRate = 1
	lossy := NewLossyChannel(a, cfg, 1)

	seg := Segment{SourcePort: 9800, DestinationPort: 8800, SequenceNumber: 1, Flags: SYNFlag}
	wire, err := seg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := lossy.Send(b.LocalAddr(), wire); err != nil {
		t.Fatal(err)
	}

	if _, _, err := b.Receive(100 * time.Millisecond); !errors.Is(err, ErrChannelTimeout) {
		t.Fatalf("receive returned %v, want ErrChannelTimeout", err)
	}
}

func TestLossyChannelCorruptsPayload(t *testing.T) {
	a, b := newMemChannelPair(9810, 8810)
	cfg := simulatorConfig()
	cfg.CorruptRate = 1
	lossy := NewLossyChannel(a, cfg, 42)

	seg := Segment{SourcePort: 9810, DestinationPort: 8810, SequenceNumber: 7, Flags: SYNFlag}
	wire, err := seg.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	corruptedSeen := false
	for i := 0; i < 32 && !corruptedSeen; i++ {
		if err := lossy.Send(b.LocalAddr(), wire); err != nil {
			t.Fatal(err)
		}
		_, data, err := b.Receive(time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, wire) {
			corruptedSeen = true
		}
	}
	if !corruptedSeen {
		t.Fatal("no datagram was corrupted at corruptRate=1")
	}
}

func TestLossyChannelDelaysDelivery(t *testing.T) {
	a, b := newMemChannelPair(9820, 8820)
	cfg := simulatorConfig()
	cfg.MinDelay = 30
	cfg.MaxDelay = 30
	lossy := NewLossyChannel(a, cfg, 7)

	seg := Segment{SourcePort: 9820, DestinationPort: 8820, SequenceNumber: 9, Flags: SYNFlag}
	wire, err := seg.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := lossy.Send(b.LocalAddr(), wire); err != nil {
		t.Fatal(err)
	}
	_, data, err := b.Receive(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("datagram arrived after %s, want at least ~30ms of delay", elapsed)
	}
	if !bytes.Equal(data, wire) {
		t.Error("delayed datagram was altered")
	}
}

// A lossless, delay-free lossy channel must behave exactly like the channel
// it wraps, end to end through the drivers.
func TestLossyChannelPassThroughHandshake(t *testing.T) {
	clientChan, serverChan := newMemChannelPair(9830, 8830)
	cfg := testConfig()
	initiator := NewInitiator(NewLossyChannel(clientChan, cfg, 3), cfg)
	responder := NewResponder(NewLossyChannel(serverChan, cfg, 4), cfg)

	resultCh := make(chan acceptResult, 1)
	go func() {
		conn, err := responder.Accept()
		resultCh <- acceptResult{conn, err}
	}()

	conn, err := initiator.Open(serverChan.LocalAddr())
	if err != nil {
		t.Fatalf("open through pass-through lossy channel failed: %s", err)
	}
	res := <-resultCh
	if res.err != nil {
		t.Fatalf("accept failed: %s", res.err)
	}
	if conn.State() != StateEstablished || res.conn.State() != StateEstablished {
		t.Fatalf("states are %s/%s, want ESTABLISHED", conn.State(), res.conn.State())
	}
}
