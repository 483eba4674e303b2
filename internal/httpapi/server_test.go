package httpapi

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParsePositiveInt(t *testing.T) {
	t.Parallel()

	if got, err := parsePositiveInt("", 25, 1, 200); err != nil || got != 25 {
		t.Fatalf("empty uses default: got %d err %v", got, err)
	}
	if got, err := parsePositiveInt(" 50 ", 25, 1, 200); err != nil || got != 50 {
		t.Fatalf("trimmed value: got %d err %v", got, err)
	}
	if _, err := parsePositiveInt("abc", 25, 1, 200); err == nil {
		t.Fatalf("expected error for non-integer")
	}
	if _, err := parsePositiveInt("0", 25, 1, 200); err == nil {
		t.Fatalf("expected error below minimum")
	}
	if _, err := parsePositiveInt("201", 25, 1, 200); err == nil {
		t.Fatalf("expected error above maximum")
	}
}

func TestNewServer_Defaults(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zerolog.Nop(), Options{})
	if srv.opts.ListenAddr != ":8087" {
		t.Fatalf("default listen addr: got %q", srv.opts.ListenAddr)
	}
	if srv.opts.ReadTimeout <= 0 || srv.opts.WriteTimeout <= 0 || srv.opts.ShutdownTimeout <= 0 {
		t.Fatalf("expected positive default timeouts: %+v", srv.opts)
	}
}
