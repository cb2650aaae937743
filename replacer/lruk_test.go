package replacer

import "testing"

func TestLRUKReplacer_ScenarioK2(t *testing.T) {
	r := NewLRUKReplacer(8, 2)

	// Frames 1,2,3,4 each accessed once: all land in history, evictable.
	for _, f := range []int{1, 2, 3, 4} {
		if err := r.RecordAccess(f); err != nil {
			t.Fatalf("RecordAccess(%d): %v", f, err)
		}
		if err := r.SetEvictable(f, true); err != nil {
			t.Fatalf("SetEvictable(%d): %v", f, err)
		}
	}
	if got := r.Size(); got != 4 {
		t.Fatalf("Size() = %d, want 4", got)
	}

	// Access frame 1 again: it now has 2 accesses (== K), promoted to the
	// cache list. Frame 2 remains the oldest single-access frame in
	// history, so it is the next victim.
	if err := r.RecordAccess(1); err != nil {
		t.Fatal(err)
	}

	victim, ok := r.Evict()
	if !ok {
		t.Fatal("Evict() returned no victim")
	}
	if victim != 2 {
		t.Fatalf("victim = %d, want 2", victim)
	}
	if got := r.Size(); got != 3 {
		t.Fatalf("Size() after evict = %d, want 3", got)
	}
}

func TestLRUKReplacer_PinnedFramesNotEvicted(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	for _, f := range []int{0, 1, 2} {
		_ = r.RecordAccess(f)
		_ = r.SetEvictable(f, true)
	}
	_ = r.SetEvictable(1, false) // pin frame 1

	victim, ok := r.Evict()
	if !ok {
		t.Fatal("expected an evictable victim")
	}
	if victim == 1 {
		t.Fatal("evicted a pinned frame")
	}
}

func TestLRUKReplacer_KDistanceOrdering(t *testing.T) {
	r := NewLRUKReplacer(4, 3)
	for _, f := range []int{0, 1, 2, 3} {
		_ = r.RecordAccess(f)
		_ = r.SetEvictable(f, true)
	}
	// Frame 0 reaches K=3 accesses; frames 1-3 stay below K (infinite
	// K-distance) and must be evicted first, in first-access order.
	_ = r.RecordAccess(0)
	_ = r.RecordAccess(0)

	for _, want := range []int{1, 2, 3, 0} {
		got, ok := r.Evict()
		if !ok {
			t.Fatalf("Evict() exhausted early, wanted %d", want)
		}
		if got != want {
			t.Fatalf("Evict() = %d, want %d", got, want)
		}
	}
	if _, ok := r.Evict(); ok {
		t.Fatal("expected no victims left")
	}
}

func TestLRUKReplacer_RemoveAndSetEvictableAreIdempotentOnUntracked(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.Remove(2) // never recorded; must not panic
	if err := r.SetEvictable(2, true); err != nil {
		t.Fatalf("SetEvictable on untracked frame: %v", err)
	}
	if got := r.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0", got)
	}
}

func TestLRUKReplacer_OutOfRangeFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	if err := r.RecordAccess(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
