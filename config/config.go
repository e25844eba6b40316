package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the configuration loaded at startup. Binaries assign it
// once via ReadConfig before creating any channel or driver.
var AppConfig *Config

// Config carries all tunables for the SimpleTCP engine. Timeout values are
// in milliseconds.
type Config struct {
	HandshakeTimeout   int     `yaml:"handshakeTimeout"`   // max wait for the peer during open
	TeardownTimeout    int     `yaml:"teardownTimeout"`    // max wait for the peer during close
	ResponderAutoClose bool    `yaml:"responderAutoClose"` // send FIN-ACK immediately upon the peer's FIN
	BufferPoolSize     int     `yaml:"bufferPoolSize"`     // number of receive buffers in the ring pool
	BufferLength       int     `yaml:"bufferLength"`       // size of each receive buffer in bytes
	Debug              bool    `yaml:"debug"`              // verbose per-segment tracing
	LossRate           float64 `yaml:"lossRate"`           // lossy channel: drop probability, 0.0-1.0
	CorruptRate        float64 `yaml:"corruptRate"`        // lossy channel: corruption probability, 0.0-1.0
	MinDelay           int     `yaml:"minDelay"`           // lossy channel: minimum delivery delay (ms)
	MaxDelay           int     `yaml:"maxDelay"`           // lossy channel: maximum delivery delay (ms)
}

func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout:   5000,
		TeardownTimeout:    5000,
		ResponderAutoClose: false,
		BufferPoolSize:     64,
		BufferLength:       1500,
		Debug:              false,
		LossRate:           0,
		CorruptRate:        0,
		MinDelay:           0,
		MaxDelay:           0,
	}
}

// ReadConfig loads a YAML configuration file on top of the defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HandshakeTimeout <= 0 || c.TeardownTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (handshakeTimeout=%d, teardownTimeout=%d)", c.HandshakeTimeout, c.TeardownTimeout)
	}
	if c.BufferPoolSize <= 0 || c.BufferLength <= 0 {
		return fmt.Errorf("buffer pool settings must be positive (bufferPoolSize=%d, bufferLength=%d)", c.BufferPoolSize, c.BufferLength)
	}
	if c.LossRate < 0 || c.LossRate > 1 || c.CorruptRate < 0 || c.CorruptRate > 1 {
		return fmt.Errorf("loss/corrupt rates must be within [0,1] (lossRate=%g, corruptRate=%g)", c.LossRate, c.CorruptRate)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("delay range is invalid (minDelay=%d, maxDelay=%d)", c.MinDelay, c.MaxDelay)
	}
	return nil
}

func (c *Config) HandshakeDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Millisecond
}

func (c *Config) TeardownDuration() time.Duration {
	return time.Duration(c.TeardownTimeout) * time.Millisecond
}
