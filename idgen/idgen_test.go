package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("chk_", Default)
	if id := gen(); !strings.HasPrefix(id, "chk_") {
		t.Fatalf("expected chk_ prefix, got %s", id)
	}
}

func TestTimestamped(t *testing.T) {
	gen := Timestamped(Default)
	id := gen()
	if !strings.Contains(id, "_") {
		t.Fatalf("expected timestamp separator in %s", id)
	}
	if len(id) < len("20060102T150405Z_")+10 {
		t.Fatalf("unexpectedly short ID %s", id)
	}
}
