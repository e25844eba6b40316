package lib

import (
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/netlabsim/simpletcp/config"
)

// LossyChannel decorates a Channel with simulated loss, corruption and
// delivery delay on the send path. The receive path is untouched. The engine
// never retransmits, so a dropped segment surfaces as a driver timeout on
// the waiting side.
type LossyChannel struct {
	Channel
	lossRate    float64
	corruptRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	rng         *rand.Rand
}

// NewLossyChannel wraps underlying with the loss parameters from cfg.
func NewLossyChannel(underlying Channel, cfg *config.Config, seed int64) *LossyChannel {
	return &LossyChannel{
		Channel:     underlying,
		lossRate:    cfg.LossRate,
		corruptRate: cfg.CorruptRate,
		minDelay:    time.Duration(cfg.MinDelay) * time.Millisecond,
		maxDelay:    time.Duration(cfg.MaxDelay) * time.Millisecond,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (l *LossyChannel) Send(peer net.Addr, data []byte) error {
	if l.rng.Float64() < l.lossRate {
		log.Printf("[simulator] dropped %d-byte datagram to %s", len(data), peer)
		return nil
	}

	out := make([]byte, len(data))
	copy(out, data)
	if l.rng.Float64() < l.corruptRate {
		l.corrupt(out)
		log.Printf("[simulator] corrupted datagram to %s", peer)
	}

	delay := l.minDelay
	if l.maxDelay > l.minDelay {
		delay += time.Duration(l.rng.Int63n(int64(l.maxDelay - l.minDelay)))
	}
	if delay <= 0 {
		return l.Channel.Send(peer, out)
	}

	time.AfterFunc(delay, func() {
		if err := l.Channel.Send(peer, out); err != nil {
			log.Printf("[simulator] delayed send to %s failed: %s", peer, err)
		}
	})
	return nil
}

// corrupt inverts all bits of up to five random bytes.
func (l *LossyChannel) corrupt(data []byte) {
	if len(data) == 0 {
		return
	}
	n := 1 + l.rng.Intn(5)
	for i := 0; i < n; i++ {
		data[l.rng.Intn(len(data))] ^= 0xFF
	}
}
