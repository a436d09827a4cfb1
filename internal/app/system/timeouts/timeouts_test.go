package timeouts

import (
	"testing"
	"time"
)

func TestConfigure_PartialOverride(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 8 * time.Second, Batch: 2 * time.Minute})

	if Short() != 8*time.Second {
		t.Errorf("Short: got %v", Short())
	}
	if Batch() != 2*time.Minute {
		t.Errorf("Batch: got %v", Batch())
	}
	// Untouched classes keep their defaults.
	if Ping() != DefaultPing || Medium() != DefaultMedium || Long() != DefaultLong {
		t.Errorf("unexpected defaults: ping=%v medium=%v long=%v", Ping(), Medium(), Long())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Cleanup(Reset)

	t.Setenv("TIMEOUT_PING", "750ms")
	t.Setenv("TIMEOUT_LONG", "45s")
	t.Setenv("TIMEOUT_MEDIUM", "not-a-duration")

	if n := ConfigureFromEnv(); n != 2 {
		t.Fatalf("expected 2 overrides, got %d", n)
	}
	if Ping() != 750*time.Millisecond {
		t.Errorf("Ping: got %v", Ping())
	}
	if Long() != 45*time.Second {
		t.Errorf("Long: got %v", Long())
	}
	if Medium() != DefaultMedium {
		t.Errorf("unparsable override should keep the default, got %v", Medium())
	}
}
