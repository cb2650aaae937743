package pagestore

import (
	"path/filepath"
	"testing"
)

func newTestDiskStore(t *testing.T, capacity, k int) *DiskStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewDiskStore(path, capacity, k)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDiskStore_NewFetchUnpin(t *testing.T) {
	s := newTestDiskStore(t, 4, 2)

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

// Evicting an unpinned dirty frame must write it through to the backing
// file with a valid checksum, so a later fetch re-reads it correctly even
// after the in-memory frame is gone.
func TestDiskStore_EvictedPageSurvivesRoundTripThroughDisk(t *testing.T) {
	s := newTestDiskStore(t, 2, 2) // one frame taken by the header page

	p1, err := s.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	p1.Data[0] = 9
	if err := s.UnpinPage(p1.ID, true); err != nil {
		t.Fatal(err)
	}
	// Pin the header page so p1 is the only evictable frame.
	if _, err := s.FetchPage(HeaderPageID); err != nil {
		t.Fatalf("FetchPage(header): %v", err)
	}

	p2, err := s.NewPage()
	if err != nil {
		t.Fatalf("NewPage under full pool: %v", err)
	}
	if err := s.UnpinPage(p2.ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchPage(p1.ID)
	if err != nil {
		t.Fatalf("FetchPage(p1) after eviction to disk: %v", err)
	}
	if got.Data[0] != 9 {
		t.Fatalf("page lost its write across eviction: Data[0] = %d, want 9", got.Data[0])
	}
	_ = s.UnpinPage(p1.ID, false)
}

func TestDiskStore_PoolExhaustedWhenAllPinned(t *testing.T) {
	s := newTestDiskStore(t, 1, 2) // the header page alone fills the pool
	if _, err := s.FetchPage(HeaderPageID); err != nil { // and is now pinned
		t.Fatalf("FetchPage(header): %v", err)
	}

	if _, err := s.NewPage(); err == nil {
		t.Fatal("expected pool exhaustion error, got nil")
	}
}

func TestDiskStore_DeletePinnedPageFails(t *testing.T) {
	s := newTestDiskStore(t, 4, 2)
	p, _ := s.NewPage()
	if err := s.DeletePage(p.ID); err != ErrPagePinned {
		t.Fatalf("DeletePage on pinned page = %v, want ErrPagePinned", err)
	}
	_ = s.UnpinPage(p.ID, false)
	if err := s.DeletePage(p.ID); err != nil {
		t.Fatalf("DeletePage on unpinned page: %v", err)
	}
}

// Reopening the same file must recover nextPageID from its size, so newly
// allocated pages don't collide with ones already on disk.
func TestDiskStore_ReopenRecoversNextPageID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s1, err := NewDiskStore(path, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	p1, err := s1.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	p1.Data[0] = 5
	if err := s1.UnpinPage(p1.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewDiskStore(path, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.FetchPage(p1.ID)
	if err != nil {
		t.Fatalf("FetchPage after reopen: %v", err)
	}
	if got.Data[0] != 5 {
		t.Fatalf("Data[0] = %d, want 5", got.Data[0])
	}
	_ = s2.UnpinPage(p1.ID, false)

	p2, err := s2.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	if p2.ID == p1.ID {
		t.Fatalf("reopened store reused page ID %d", p2.ID)
	}
	_ = s2.UnpinPage(p2.ID, false)
}
