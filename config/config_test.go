package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults do not validate: %s", err)
	}
	if cfg.HandshakeDuration() != 5*time.Second {
		t.Errorf("default handshake duration is %s, want 5s", cfg.HandshakeDuration())
	}
	if cfg.ResponderAutoClose {
		t.Error("responderAutoClose defaults to true, want false")
	}
}

func TestReadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("handshakeTimeout: 1234\nresponderAutoClose: true\nlossRate: 0.25\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HandshakeTimeout != 1234 {
		t.Errorf("handshakeTimeout = %d, want 1234", cfg.HandshakeTimeout)
	}
	if !cfg.ResponderAutoClose {
		t.Error("responderAutoClose was not overridden")
	}
	if cfg.LossRate != 0.25 {
		t.Errorf("lossRate = %g, want 0.25", cfg.LossRate)
	}
	// untouched keys keep their defaults
	if cfg.TeardownTimeout != DefaultConfig().TeardownTimeout {
		t.Errorf("teardownTimeout = %d, want default %d", cfg.TeardownTimeout, DefaultConfig().TeardownTimeout)
	}
}

func TestReadConfigRejectsBadInput(t *testing.T) {
	if _, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file did not error")
	}

	badYaml := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(badYaml, []byte("handshakeTimeout: [nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadConfig(badYaml); err == nil {
		t.Error("unparseable YAML did not error")
	}

	badValues := filepath.Join(t.TempDir(), "values.yaml")
	if err := os.WriteFile(badValues, []byte("lossRate: 2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadConfig(badValues); err == nil {
		t.Error("out-of-range lossRate did not error")
	}
}
