package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "supernode"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
	paused := PauseSet{"supernode": true}
	if err := Guard(paused, ""); err != nil {
		t.Fatalf("empty module must not pause: %v", err)
	}
	if err := Guard(paused, "bank"); err != nil {
		t.Fatalf("unlisted module must not pause: %v", err)
	}
	err := Guard(paused, " Supernode ")
	if !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
