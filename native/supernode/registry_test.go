package supernode

import "testing"

func TestActorRegistryKeepsInsertionOrder(t *testing.T) {
	r := NewActorRegistry(addr(3), addr(1), addr(3))
	if r.Len() != 2 {
		t.Fatalf("expected 2 actors, got %d", r.Len())
	}
	if !r.Add(addr(2)) {
		t.Fatalf("expected new actor to be added")
	}
	if r.Add(addr(1)) {
		t.Fatalf("duplicate add must report false")
	}
	got := r.Addresses()
	want := []byte{3, 1, 2}
	for i, b := range want {
		if got[i] != addr(b) {
			t.Fatalf("position %d: got %s want %s", i, got[i].Hex(), addr(b).Hex())
		}
	}
	if a, err := r.At(2); err != nil || a != addr(2) {
		t.Fatalf("At(2) = %s, %v", a.Hex(), err)
	}
	if _, err := r.At(3); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestActorRegistryCloneIsIndependent(t *testing.T) {
	r := NewActorRegistry(addr(1))
	c := r.Clone()
	c.Add(addr(2))
	if r.Contains(addr(2)) || r.Len() != 1 {
		t.Fatalf("clone mutation leaked into original")
	}
	got := c.Addresses()
	got[0] = addr(9)
	if !c.Contains(addr(1)) {
		t.Fatalf("Addresses must return a copy")
	}
}
