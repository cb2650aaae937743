package bplustree

import (
	"fmt"

	"indexcore/pagestore"
)

// Iterator walks the tree in key order starting at a given point, holding
// a read latch and pin on its current leaf at all times (spec.md §4.3,
// SPEC_FULL.md §4.2), exactly as bustub's index_iterator.cpp does: IsEnd
// is true only once next_page_id is invalid *and* the in-leaf index has
// run past the last entry, not merely "ran off the right edge of one
// leaf".
type Iterator struct {
	tree *BPlusTree
	leaf *nodeRef
	idx  int
	err  error
	done bool
}

// Begin returns an iterator positioned at the smallest key >= key (or at
// the first entry overall, if key is nil).
func (t *BPlusTree) Begin(key []byte) (*Iterator, error) {
	t.rootLock.RLock()
	if t.rootID == pagestore.InvalidPageID {
		t.rootLock.RUnlock()
		return &Iterator{tree: t, done: true}, nil
	}
	ref, err := t.fetchNode(t.rootID)
	if err != nil {
		t.rootLock.RUnlock()
		return nil, err
	}
	ref.page.RLatch()
	t.rootLock.RUnlock()

	for ref.nd.kind == internalKind {
		var idx int
		if key == nil {
			idx = 0
		} else {
			idx = internalChildIndex(ref.nd, key, t.cmp)
		}
		child, err := t.fetchNode(ref.nd.children[idx])
		if err != nil {
			ref.page.RUnlatch()
			_ = t.store.UnpinPage(ref.nd.pageID, false)
			return nil, err
		}
		child.page.RLatch()
		ref.page.RUnlatch()
		if err := t.store.UnpinPage(ref.nd.pageID, false); err != nil {
			child.page.RUnlatch()
			_ = t.store.UnpinPage(child.nd.pageID, false)
			return nil, err
		}
		ref = child
	}

	startIdx := 0
	if key != nil {
		startIdx, _ = leafSearch(ref.nd, key, t.cmp)
	}
	it := &Iterator{tree: t, leaf: ref, idx: startIdx}
	it.done = it.leaf.nd.size == 0 && it.leaf.nd.nextPageID == pagestore.InvalidPageID
	return it, nil
}

// IsEnd reports whether the iterator has been exhausted.
func (it *Iterator) IsEnd() bool {
	if it.done {
		return true
	}
	return it.leaf.nd.nextPageID == pagestore.InvalidPageID && it.idx >= it.leaf.nd.size
}

// Key/Value return the current entry. Calling them at/after IsEnd is a
// programming error.
func (it *Iterator) Key() ([]byte, error) {
	if it.IsEnd() {
		return nil, fmt.Errorf("bplustree: Key() called at end of iterator")
	}
	return it.leaf.nd.keys[it.idx], nil
}

func (it *Iterator) Value() ([]byte, error) {
	if it.IsEnd() {
		return nil, fmt.Errorf("bplustree: Value() called at end of iterator")
	}
	return it.leaf.nd.values[it.idx], nil
}

// Next advances the iterator, crossing into the right sibling leaf (and
// releasing the old one's latch+pin) when the current leaf is exhausted.
func (it *Iterator) Next() error {
	if it.IsEnd() {
		return fmt.Errorf("bplustree: Next() called at end of iterator")
	}
	it.idx++
	if it.idx < it.leaf.nd.size {
		return nil
	}
	if it.leaf.nd.nextPageID == pagestore.InvalidPageID {
		return nil // IsEnd() will now report true
	}

	next, err := it.tree.fetchNode(it.leaf.nd.nextPageID)
	if err != nil {
		it.err = err
		return err
	}
	next.page.RLatch()
	it.leaf.page.RUnlatch()
	if err := it.tree.store.UnpinPage(it.leaf.nd.pageID, false); err != nil {
		return err
	}
	it.leaf = next
	it.idx = 0
	return nil
}

// Close releases the iterator's held latch and pin. Safe to call more
// than once, and required even if the caller drains to IsEnd() (spec.md
// §7: every pin must be released exactly once; draining naturally leaves
// the final leaf still pinned until Close).
func (it *Iterator) Close() error {
	if it.leaf == nil {
		return nil
	}
	leaf := it.leaf
	it.leaf = nil
	leaf.page.RUnlatch()
	return it.tree.store.UnpinPage(leaf.nd.pageID, false)
}
