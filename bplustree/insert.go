package bplustree

import (
	"indexcore/pagestore"
	"indexcore/txn"
)

// Insert adds key/val, reporting false without modifying the tree if key
// already exists (spec.md §4.3: reject-on-duplicate, not overwrite — see
// DESIGN.md for the Open Questions resolution).
func (t *BPlusTree) Insert(key, val []byte) (bool, error) {
	t.rootLock.Lock()
	if t.rootID == pagestore.InvalidPageID {
		ref, err := t.newLeaf(pagestore.InvalidPageID)
		if err != nil {
			t.rootLock.Unlock()
			return false, err
		}
		ref.nd.keys = [][]byte{key}
		ref.nd.values = [][]byte{val}
		ref.nd.size = 1
		if err := ref.flush(); err != nil {
			t.rootLock.Unlock()
			return false, err
		}
		t.rootID = ref.nd.pageID
		if err := t.saveRoot(); err != nil {
			t.rootLock.Unlock()
			return false, err
		}
		t.rootLock.Unlock()
		return true, t.store.UnpinPage(ref.nd.pageID, true)
	}
	t.rootLock.Unlock()

	t.rootLock.Lock()
	h := txn.New(t.store, t.rootLock.Unlock)
	h.AddRoot()

	leaf, err := t.descend(h, key, modeInsert)
	if err != nil {
		h.ReleaseAll()
		return false, err
	}

	idx, found := leafSearch(leaf.nd, key, t.cmp)
	if found {
		h.ReleaseAll()
		leaf.page.WUnlatch()
		return false, t.store.UnpinPage(leaf.nd.pageID, false)
	}

	insertIntoLeaf(leaf.nd, idx, key, val)

	if leaf.nd.size < t.leafMax {
		if err := leaf.flush(); err != nil {
			h.ReleaseAll()
			leaf.page.WUnlatch()
			_ = t.store.UnpinPage(leaf.nd.pageID, true)
			return false, err
		}
		h.ReleaseAll()
		leaf.page.WUnlatch()
		return true, t.store.UnpinPage(leaf.nd.pageID, true)
	}

	right, sepKey, err := t.splitLeaf(leaf.nd)
	if err != nil {
		h.ReleaseAll()
		leaf.page.WUnlatch()
		_ = t.store.UnpinPage(leaf.nd.pageID, false)
		return false, err
	}
	if err := leaf.flush(); err != nil {
		h.ReleaseAll()
		leaf.page.WUnlatch()
		_ = t.store.UnpinPage(leaf.nd.pageID, true)
		_ = t.store.UnpinPage(right.nd.pageID, true)
		return false, err
	}

	if err := t.insertInParent(h, leaf, sepKey, right); err != nil {
		leaf.page.WUnlatch()
		_ = t.store.UnpinPage(leaf.nd.pageID, true)
		_ = t.store.UnpinPage(right.nd.pageID, true)
		return false, err
	}
	leaf.page.WUnlatch()
	if err := t.store.UnpinPage(leaf.nd.pageID, true); err != nil {
		return false, err
	}
	return true, t.store.UnpinPage(right.nd.pageID, true)
}

// splitLeaf moves the upper half of full's entries into a new right
// sibling and returns it along with the separator key promoted to the
// parent (the new right sibling's first key).
func (t *BPlusTree) splitLeaf(full *node) (*nodeRef, []byte, error) {
	right, err := t.newLeaf(full.parentID)
	if err != nil {
		return nil, nil, err
	}
	at := t.leafMin
	right.nd.keys = append([][]byte(nil), full.keys[at:]...)
	right.nd.values = append([][]byte(nil), full.values[at:]...)
	right.nd.size = full.size - at
	right.nd.nextPageID = full.nextPageID

	full.keys = full.keys[:at]
	full.values = full.values[:at]
	full.size = at
	full.nextPageID = right.nd.pageID

	if err := right.flush(); err != nil {
		return nil, nil, err
	}
	return right, right.nd.keys[0], nil
}

// insertInParent links right into left's parent under sepKey, splitting
// (and recursing upward) or creating a new root as needed. Grounded on
// bustub's InsertInParent; unlike that source, the parent is retrieved
// from h (the already-held ancestor queue) rather than re-fetched with a
// second, redundant pin (see DESIGN.md).
func (t *BPlusTree) insertInParent(h *txn.Handle, left *nodeRef, sepKey []byte, right *nodeRef) error {
	if left.nd.parentID == pagestore.InvalidPageID {
		newRoot, err := t.newInternal(pagestore.InvalidPageID)
		if err != nil {
			return err
		}
		newRoot.nd.children = []int64{left.nd.pageID, right.nd.pageID}
		newRoot.nd.keys = [][]byte{nil, sepKey}
		newRoot.nd.size = 2

		left.nd.parentID = newRoot.nd.pageID
		right.nd.parentID = newRoot.nd.pageID
		if err := writeAll(newRoot, left, right); err != nil {
			return err
		}
		t.rootID = newRoot.nd.pageID
		if err := t.saveRoot(); err != nil {
			return err
		}
		h.ReleaseAll()
		return t.store.UnpinPage(newRoot.nd.pageID, true)
	}

	parent, err := t.takeOrFetchWrite(h, left.nd.parentID)
	if err != nil {
		return err
	}
	idx := parent.nd.indexOfChild(left.nd.pageID)
	right.nd.parentID = parent.nd.pageID

	if parent.nd.size < t.internalMax {
		insertChildAt(parent.nd, idx+1, sepKey, right.nd.pageID)
		if err := parent.flush(); err != nil {
			return err
		}
		h.ReleaseAll()
		parent.page.WUnlatch()
		return t.store.UnpinPage(parent.nd.pageID, true)
	}

	newRight, promoted, err := t.splitInternal(parent.nd, idx+1, sepKey, right.nd.pageID)
	if err != nil {
		return err
	}
	if err := parent.flush(); err != nil {
		return err
	}
	if err := t.insertInParent(h, parent, promoted, newRight); err != nil {
		return err
	}
	parent.page.WUnlatch()
	if err := t.store.UnpinPage(parent.nd.pageID, true); err != nil {
		return err
	}
	return t.store.UnpinPage(newRight.nd.pageID, true)
}

// takeOrFetchWrite retrieves pageID's nodeRef from h's held ancestor
// queue; if it isn't there (defensive fallback — correct crabbing always
// retains the immediate parent), it is fetched and write-latched fresh.
func (t *BPlusTree) takeOrFetchWrite(h *txn.Handle, pageID int64) (*nodeRef, error) {
	if page, ok := h.Take(pageID); ok {
		nd, err := decodeNode(page.Data)
		if err != nil {
			return nil, err
		}
		return &nodeRef{page, nd}, nil
	}
	ref, err := t.fetchNode(pageID)
	if err != nil {
		return nil, err
	}
	ref.page.WLatch()
	return ref, nil
}

// splitInternal inserts (sepKey, childID) at insertAt into an already-full
// internal node, then splits the resulting max+1-entry array: the left
// half stays in place, the right half moves to a new node, and the
// middle entry's key is promoted to the grandparent.
func (t *BPlusTree) splitInternal(left *node, insertAt int, sepKey []byte, childID int64) (*nodeRef, []byte, error) {
	keys := make([][]byte, left.size+1)
	children := make([]int64, left.size+1)
	copy(keys[:insertAt], left.keys[:insertAt])
	copy(children[:insertAt], left.children[:insertAt])
	keys[insertAt] = sepKey
	children[insertAt] = childID
	copy(keys[insertAt+1:], left.keys[insertAt:])
	copy(children[insertAt+1:], left.children[insertAt:])

	min := t.internalMin
	promoted := keys[min]

	left.keys = append([][]byte(nil), keys[:min]...)
	left.children = append([]int64(nil), children[:min]...)
	left.size = min

	right, err := t.newInternal(left.parentID)
	if err != nil {
		return nil, nil, err
	}
	right.nd.keys = append([][]byte{nil}, keys[min+1:]...)
	right.nd.children = append([]int64(nil), children[min:]...)
	right.nd.size = len(right.nd.children)

	for _, childID := range right.nd.children {
		if err := t.reparent(childID, right.nd.pageID); err != nil {
			return nil, nil, err
		}
	}
	if err := right.flush(); err != nil {
		return nil, nil, err
	}
	return right, promoted, nil
}
