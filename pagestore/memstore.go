package pagestore

import (
	"fmt"

	"indexcore/hashtable"
	"indexcore/replacer"

	"github.com/dustin/go-humanize"
)

// MemStore is an in-memory, capacity-bound PageStore: a fixed frame array,
// an extendible hash table mapping page_id -> frame (spec.md §6's "buffer
// pool" data-flow note), and an LRU-K replacer choosing eviction victims
// among unpinned frames. Evicted dirty pages are preserved in a backing
// map so a later FetchPage still sees their last-written contents; this is
// the in-memory stand-in for DiskStore's actual file I/O.
//
// Grounded on the teacher's bplustree/buffer_pool.go and
// storage_engine/bufferpool/bufferpool.go, generalized from a hand-rolled
// LRU list to the LRU-K replacer and from a plain map to the extendible
// hash table (SPEC_FULL.md §3 wires both into this component).
type MemStore struct {
	capacity int
	replacer *replacer.LRUKReplacer
	dir      *hashtable.Table[int64, int]

	frames   []*Page
	freeList []int

	nextPageID int64
	backing    map[int64][]byte
	verbose    bool
}

// NewMemStore builds a store with capacity frames, evicting by LRU-K with
// history depth k.
func NewMemStore(capacity, k int) *MemStore {
	s := &MemStore{
		capacity: capacity,
		replacer: replacer.NewLRUKReplacer(capacity, k),
		dir:      hashtable.NewTable[int64, int](4, hashtable.HashInt64),
		frames:   make([]*Page, capacity),
		backing:  make(map[int64][]byte),
	}
	for i := capacity - 1; i >= 0; i-- {
		s.freeList = append(s.freeList, i)
	}
	// Reserve the header page up front so NewPage/FetchPage(HeaderPageID)
	// behave uniformly for every other caller (spec.md §6).
	hp, err := s.NewPage()
	if err != nil || hp.ID != HeaderPageID {
		panic("pagestore: failed to reserve header page")
	}
	_ = s.UnpinPage(HeaderPageID, true)
	return s
}

// SetVerbose toggles the teacher's bracketed [PageStore] diagnostic log
// lines (SPEC_FULL.md §2, matching bufferpool.go's own style).
func (s *MemStore) SetVerbose(v bool) { s.verbose = v }

func (s *MemStore) logf(format string, args ...any) {
	if s.verbose {
		fmt.Printf("[PageStore] "+format+"\n", args...)
	}
}

func (s *MemStore) allocFrame() (int, error) {
	if len(s.freeList) > 0 {
		f := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		return f, nil
	}
	frame, ok := s.replacer.Evict()
	if !ok {
		return 0, ErrPoolExhausted
	}
	victim := s.frames[frame]
	s.logf("EVICT pageID=%d frame=%d dirty=%v", victim.ID, frame, victim.IsDirty)
	if victim.IsDirty {
		s.backing[victim.ID] = append([]byte(nil), victim.Data...)
	}
	s.dir.Remove(victim.ID)
	s.frames[frame] = nil
	return frame, nil
}

// NewPage allocates a fresh page and pins it.
func (s *MemStore) NewPage() (*Page, error) {
	frame, err := s.allocFrame()
	if err != nil {
		return nil, err
	}
	id := s.nextPageID
	s.nextPageID++

	p := newPage(id)
	p.PinCount = 1
	s.frames[frame] = p
	s.dir.Insert(id, frame)
	if err := s.replacer.RecordAccess(frame); err != nil {
		return nil, err
	}
	if err := s.replacer.SetEvictable(frame, false); err != nil {
		return nil, err
	}
	s.logf("NEW pageID=%d frame=%d poolBytes=%s", id, frame, humanize.Bytes(uint64(s.capacity*PageSize)))
	return p, nil
}

// FetchPage returns the handle for id, loading it from the backing map
// (simulating a disk read) if it isn't currently resident.
func (s *MemStore) FetchPage(id int64) (*Page, error) {
	if frame, ok := s.dir.Find(id); ok {
		p := s.frames[frame]
		p.PinCount++
		if err := s.replacer.RecordAccess(frame); err != nil {
			return nil, err
		}
		if p.PinCount == 1 {
			if err := s.replacer.SetEvictable(frame, false); err != nil {
				return nil, err
			}
		}
		s.logf("HIT pageID=%d frame=%d pinCount=%d", id, frame, p.PinCount)
		return p, nil
	}

	data, ok := s.backing[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrPageNotFound, id)
	}
	frame, err := s.allocFrame()
	if err != nil {
		return nil, err
	}
	p := newPage(id)
	copy(p.Data, data)
	p.PinCount = 1
	s.frames[frame] = p
	s.dir.Insert(id, frame)
	if err := s.replacer.RecordAccess(frame); err != nil {
		return nil, err
	}
	if err := s.replacer.SetEvictable(frame, false); err != nil {
		return nil, err
	}
	s.logf("MISS pageID=%d frame=%d (loaded from backing)", id, frame)
	return p, nil
}

// UnpinPage decrements id's pin count, making its frame evictable once it
// reaches zero.
func (s *MemStore) UnpinPage(id int64, dirty bool) error {
	frame, ok := s.dir.Find(id)
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, id)
	}
	p := s.frames[frame]
	if p.PinCount == 0 {
		return fmt.Errorf("pagestore: unpin of page %d with pin count already zero", id)
	}
	if dirty {
		p.IsDirty = true
	}
	p.PinCount--
	if p.PinCount == 0 {
		return s.replacer.SetEvictable(frame, true)
	}
	return nil
}

// DeletePage frees id. It fails if the page is still pinned.
func (s *MemStore) DeletePage(id int64) error {
	frame, ok := s.dir.Find(id)
	if !ok {
		return nil
	}
	p := s.frames[frame]
	if p.PinCount > 0 {
		return ErrPagePinned
	}
	s.replacer.Remove(frame)
	s.dir.Remove(id)
	s.frames[frame] = nil
	delete(s.backing, id)
	s.freeList = append(s.freeList, frame)
	return nil
}

// PoolSize reports the store's frame capacity.
func (s *MemStore) PoolSize() int { return s.capacity }
