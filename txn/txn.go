// Package txn implements the per-operation latch queue the B+ tree uses
// while latch-crabbing (spec.md §4.3/§5): as Insert/Remove descend while
// holding write latches on every ancestor, they push pages (and the
// tree-wide root-ID latch) onto a Handle; once a descendant proves it
// cannot propagate a structural change further up, the whole queue is
// released in one call.
//
// This is a different concept from a storage engine's ACID transaction
// (begin/commit/abort, undo logs); the teacher's
// storage_engine/transaction_manager package is exactly that and is not
// what this models (see DESIGN.md).
package txn

import "indexcore/pagestore"

// Handle accumulates latched, pinned ancestor pages (plus, optionally, the
// tree's root-ID latch) during one B+ tree operation.
type Handle struct {
	store      pagestore.PageStore
	unlockRoot func()
	items      []*pagestore.Page // nil entries mark the root-ID latch sentinel
}

// New builds a handle for one operation against store. unlockRoot, if the
// operation holds the tree-wide root-ID latch, releases it; pass nil for
// operations that do not hold it.
func New(store pagestore.PageStore, unlockRoot func()) *Handle {
	return &Handle{store: store, unlockRoot: unlockRoot}
}

// AddRoot records that the root-ID latch is held and must be released by
// a later ReleaseAll.
func (h *Handle) AddRoot() { h.items = append(h.items, nil) }

// AddPage records that page is write-latched and pinned, to be released
// by a later ReleaseAll unless Take'n back out first.
func (h *Handle) AddPage(page *pagestore.Page) { h.items = append(h.items, page) }

// Take removes and returns the page matching pageID from the queue, for a
// caller that wants to modify and release it itself (e.g. inserting a
// separator key into a parent) rather than wait for ReleaseAll. ok is
// false if no such page is currently queued.
func (h *Handle) Take(pageID int64) (page *pagestore.Page, ok bool) {
	for i, it := range h.items {
		if it != nil && it.ID == pageID {
			h.items = append(h.items[:i], h.items[i+1:]...)
			return it, true
		}
	}
	return nil, false
}

// ReleaseAll write-unlatches and unpins every queued page (dirty=false;
// nothing in the queue was itself modified by the time it's released this
// way, only re-read) and releases the root-ID latch if one was recorded.
// Safe to call more than once: a second call is a no-op.
func (h *Handle) ReleaseAll() {
	items := h.items
	h.items = nil
	for _, it := range items {
		if it == nil {
			if h.unlockRoot != nil {
				h.unlockRoot()
			}
			continue
		}
		it.WUnlatch()
		_ = h.store.UnpinPage(it.ID, false)
	}
}
