package pagestore

import "testing"

func TestMemStore_NewFetchUnpin(t *testing.T) {
	s := NewMemStore(4, 2)

	p, err := s.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	p.Data[0] = 0x42
	if err := s.UnpinPage(p.ID, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	got, err := s.FetchPage(p.ID)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if got.Data[0] != 0x42 {
		t.Fatalf("Data[0] = %x, want 0x42", got.Data[0])
	}
	if err := s.UnpinPage(p.ID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
}

func TestMemStore_EvictsUnpinnedFrameWhenFull(t *testing.T) {
	s := NewMemStore(2, 2) // capacity 2, one frame already used by the header page

	p1, err := s.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	p1.Data[0] = 7
	if err := s.UnpinPage(p1.ID, true); err != nil {
		t.Fatal(err)
	}

	// Pool is now full (header + p1), but both are unpinned, so a new
	// page should evict one of them rather than failing.
	p2, err := s.NewPage()
	if err != nil {
		t.Fatalf("NewPage under full pool: %v", err)
	}
	if err := s.UnpinPage(p2.ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchPage(p1.ID)
	if err != nil {
		t.Fatalf("FetchPage(p1) after eviction: %v", err)
	}
	if got.Data[0] != 7 {
		t.Fatalf("evicted page lost its dirty write: Data[0] = %d, want 7", got.Data[0])
	}
	_ = s.UnpinPage(p1.ID, false)
}

func TestMemStore_PoolExhaustedWhenAllPinned(t *testing.T) {
	s := NewMemStore(1, 2) // the header page alone fills the pool
	if _, err := s.FetchPage(HeaderPageID); err != nil { // and is now pinned
		t.Fatalf("FetchPage(header): %v", err)
	}

	if _, err := s.NewPage(); err == nil {
		t.Fatal("expected pool exhaustion error, got nil")
	}
}

func TestMemStore_DeletePinnedPageFails(t *testing.T) {
	s := NewMemStore(4, 2)
	p, _ := s.NewPage()
	if err := s.DeletePage(p.ID); err != ErrPagePinned {
		t.Fatalf("DeletePage on pinned page = %v, want ErrPagePinned", err)
	}
	_ = s.UnpinPage(p.ID, false)
	if err := s.DeletePage(p.ID); err != nil {
		t.Fatalf("DeletePage on unpinned page: %v", err)
	}
}

func TestMemStore_UnpinBalanceIsStrict(t *testing.T) {
	s := NewMemStore(4, 2)
	p, _ := s.NewPage()
	if err := s.UnpinPage(p.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := s.UnpinPage(p.ID, false); err == nil {
		t.Fatal("expected error unpinning an already-unpinned page")
	}
}

func TestHeaderPage_InsertUpdateRoundTrip(t *testing.T) {
	s := NewMemStore(4, 2)
	hp, err := s.FetchPage(HeaderPageID)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHeaderPage(hp)

	if err := h.InsertRecord("orders_idx", 17); err != nil {
		t.Fatal(err)
	}
	if err := h.InsertRecord("orders_idx", 18); err == nil {
		t.Fatal("expected duplicate InsertRecord to fail")
	}
	if err := h.UpdateRecord("orders_idx", 18); err != nil {
		t.Fatal(err)
	}
	id, ok := h.GetRootPageID("orders_idx")
	if !ok || id != 18 {
		t.Fatalf("GetRootPageID = %d, %v; want 18, true", id, ok)
	}
	if _, ok := h.GetRootPageID("missing"); ok {
		t.Fatal("expected miss for unregistered name")
	}
	_ = s.UnpinPage(HeaderPageID, true)
}
