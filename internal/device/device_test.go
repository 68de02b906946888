package device

import (
	"strings"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("len(id) = %d, want 32 (%q)", len(id), id)
		}
		if !strings.HasPrefix(id, "49") {
			t.Fatalf("id = %q, want prefix 49", id)
		}
		for _, c := range id {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Fatalf("id %q contains non-hex character %q", id, c)
			}
		}
	}
}

func TestNewIDVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[NewID()] = true
	}
	if len(seen) < 2 {
		t.Error("expected distinct IDs across calls")
	}
}

func TestNewNameFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		name := NewName()
		if !strings.HasSuffix(name, "'s iPad") {
			t.Fatalf("name = %q, want suffix 's iPad", name)
		}
		base := strings.TrimSuffix(name, "'s iPad")
		parts := strings.Split(base, " ")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			t.Fatalf("name = %q, want \"First Last's iPad\"", name)
		}
	}
}
