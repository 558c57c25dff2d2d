package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNanoID(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]bool)
	for range 500 {
		id := gen()
		if len(id) != 12 {
			t.Fatalf("len(%q) = %d, want 12", id, len(id))
		}
		if strings.Trim(id, base36) != "" {
			t.Fatalf("%q has characters outside base36", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestUUIDv7_Ordered(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for range 100 {
		id := gen()
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		if u.Version() != 7 {
			t.Fatalf("version = %d, want 7", u.Version())
		}
		if id <= prev {
			t.Fatalf("%q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("ses_", NanoID(6))()
	if !strings.HasPrefix(id, "ses_") || len(id) != 10 {
		t.Fatalf("id = %q", id)
	}
}

func TestNew_UsesDefault(t *testing.T) {
	old := Default
	t.Cleanup(func() { Default = old })
	Default = func() string { return "fixed" }
	if got := New(); got != "fixed" {
		t.Fatalf("New() = %q", got)
	}
}
