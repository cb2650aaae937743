// Package replacer implements the LRU-K buffer-pool eviction policy
// (spec.md §4.1), ported from bustub's lru_k_replacer.cpp
// (_examples/original_source/src/buffer/lru_k_replacer.cpp).
package replacer

import (
	"container/list"
	"fmt"
	"sync"
)

// LRUKReplacer tracks which of a buffer pool's frames are eligible for
// eviction and picks a victim by backward K-distance: frames with fewer
// than K recorded accesses have infinite K-distance and are evicted in
// order of earliest first access (the history list); frames with K or more
// accesses are evicted in order of least-recent last access (the cache
// list, which every access moves to the front). Only the access count is
// kept per frame, not access times, so the order among cache-list frames
// is not by their Kth-from-last access.
type LRUKReplacer struct {
	mu       sync.Mutex
	capacity int
	k        int

	// history holds frames with fewer than k accesses, newest at front.
	history *list.List
	// cache holds frames with k or more accesses, most-recently-promoted
	// or most-recently-touched at front.
	cache *list.List

	historyElems map[int]*list.Element
	cacheElems   map[int]*list.Element
	counts       map[int]int
	evictable    map[int]bool
	currSize     int
}

// NewLRUKReplacer builds a replacer tracking up to capacity frame IDs
// ([0, capacity)), evicting by K-distance.
func NewLRUKReplacer(capacity, k int) *LRUKReplacer {
	return &LRUKReplacer{
		capacity:     capacity,
		k:            k,
		history:      list.New(),
		cache:        list.New(),
		historyElems: make(map[int]*list.Element),
		cacheElems:   make(map[int]*list.Element),
		counts:       make(map[int]int),
		evictable:    make(map[int]bool),
	}
}

func (r *LRUKReplacer) checkRange(frame int) error {
	if frame < 0 || frame >= r.capacity {
		return fmt.Errorf("replacer: frame %d out of range [0,%d)", frame, r.capacity)
	}
	return nil
}

// RecordAccess records that frame was just accessed, updating its count and
// list membership.
//
// The original K=1 case in bustub's source leaves a frame stuck in the
// history list forever, because the "first access" branch always inserts
// into history before the "reached K" branch gets a chance to run. spec.md
// §4.1 describes the intended behavior in plain language ("if count becomes
// exactly K with this access, move from history to cache"), which for K=1
// means the very first access already qualifies; this implementation
// special-cases K=1 to match that description rather than the source's
// off-by-one. See DESIGN.md.
func (r *LRUKReplacer) RecordAccess(frame int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkRange(frame); err != nil {
		return err
	}

	if r.counts[frame] == 0 {
		r.counts[frame] = 1
		r.evictable[frame] = true
		r.currSize++
		if r.k == 1 {
			r.cacheElems[frame] = r.cache.PushFront(frame)
		} else {
			r.historyElems[frame] = r.history.PushFront(frame)
		}
		return nil
	}

	switch {
	case r.counts[frame] < r.k-1:
		r.counts[frame]++
	case r.counts[frame] == r.k-1:
		r.counts[frame]++
		e := r.historyElems[frame]
		r.history.Remove(e)
		delete(r.historyElems, frame)
		r.cacheElems[frame] = r.cache.PushFront(frame)
	default:
		// Already at or past K accesses: refresh cache-list position
		// without bumping the count further (spec.md §4.1).
		e := r.cacheElems[frame]
		r.cache.Remove(e)
		r.cacheElems[frame] = r.cache.PushFront(frame)
	}
	return nil
}

// SetEvictable marks frame as evictable or pinned. It is a no-op for a
// frame that has never been recorded.
func (r *LRUKReplacer) SetEvictable(frame int, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkRange(frame); err != nil {
		return err
	}
	if r.counts[frame] == 0 {
		return nil
	}
	if evictable && !r.evictable[frame] {
		r.currSize++
	}
	if !evictable && r.evictable[frame] {
		r.currSize--
	}
	r.evictable[frame] = evictable
	return nil
}

// Remove drops all bookkeeping for frame. The caller's contract is that
// Remove is only called on an evictable (or untracked) frame.
func (r *LRUKReplacer) Remove(frame int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.historyElems[frame]; ok {
		r.forget(frame)
		r.history.Remove(e)
		delete(r.historyElems, frame)
		return
	}
	if e, ok := r.cacheElems[frame]; ok {
		r.forget(frame)
		r.cache.Remove(e)
		delete(r.cacheElems, frame)
	}
}

func (r *LRUKReplacer) forget(frame int) {
	delete(r.counts, frame)
	if r.evictable[frame] {
		r.currSize--
	}
	delete(r.evictable, frame)
}

// Evict picks a victim frame per the K-distance rule above, removes its
// bookkeeping, and returns it. ok is false when no frame is evictable.
func (r *LRUKReplacer) Evict() (frame int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.history.Back(); e != nil; e = e.Prev() {
		f := e.Value.(int)
		if r.evictable[f] {
			r.forget(f)
			r.history.Remove(e)
			delete(r.historyElems, f)
			return f, true
		}
	}
	for e := r.cache.Back(); e != nil; e = e.Prev() {
		f := e.Value.(int)
		if r.evictable[f] {
			r.forget(f)
			r.cache.Remove(e)
			delete(r.cacheElems, f)
			return f, true
		}
	}
	return 0, false
}

// Size reports the number of currently evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
