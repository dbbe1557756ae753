package logging

import "testing"

func TestNew(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		l, err := New(lvl, false)
		if err != nil {
			t.Fatalf("New(%q): %v", lvl, err)
		}
		_ = l.Sync()
	}
	if _, err := New("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := New("debug", true); err != nil {
		t.Fatalf("development logger: %v", err)
	}
}
