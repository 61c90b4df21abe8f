package buffer

import "testing"

func TestLRUReplacerVictimOrder(t *testing.T) {
	r := NewLRUReplacer(3)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)

	if got := r.Size(); got != 3 {
		t.Fatalf("expected size 3, got %d", got)
	}

	for _, want := range []FrameID{1, 2, 3} {
		got, ok := r.Victim()
		if !ok {
			t.Fatalf("expected a victim")
		}
		if got != want {
			t.Fatalf("expected victim %d, got %d", want, got)
		}
	}

	if _, ok := r.Victim(); ok {
		t.Fatalf("expected no victim once empty")
	}
}

func TestLRUReplacerPinRemoves(t *testing.T) {
	r := NewLRUReplacer(3)
	r.Unpin(1)
	r.Unpin(2)
	r.Pin(1)

	if got := r.Size(); got != 1 {
		t.Fatalf("expected size 1 after pinning frame 1, got %d", got)
	}
	got, ok := r.Victim()
	if !ok || got != 2 {
		t.Fatalf("expected victim 2, got %d ok=%v", got, ok)
	}
}

func TestLRUReplacerUnpinNoReorder(t *testing.T) {
	r := NewLRUReplacer(3)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(1) // already tracked: must not move to back

	got, ok := r.Victim()
	if !ok || got != 1 {
		t.Fatalf("expected victim 1 (no reorder on repeat Unpin), got %d ok=%v", got, ok)
	}
}

func TestLRUReplacerRespectsCapacity(t *testing.T) {
	r := NewLRUReplacer(2)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3) // over capacity: dropped

	if got := r.Size(); got != 2 {
		t.Fatalf("expected size capped at 2, got %d", got)
	}
}
