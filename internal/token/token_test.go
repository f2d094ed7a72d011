package token

import (
	"strings"
	"testing"
)

func TestNew_Shape(t *testing.T) {
	tok, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tok) != Length {
		t.Errorf("expected length %d, got %d", Length, len(tok))
	}
	for _, r := range tok {
		if !strings.ContainsRune(alphabet, r) {
			t.Errorf("token contains character outside alphabet: %q", r)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = true
	}
}
