package bplustree

import (
	"indexcore/pagestore"
	"indexcore/txn"
)

// Remove deletes key if present, reporting whether it was found. Deleting
// an absent key is a no-op (spec.md §4.3).
func (t *BPlusTree) Remove(key []byte) (bool, error) {
	t.rootLock.Lock()
	if t.rootID == pagestore.InvalidPageID {
		t.rootLock.Unlock()
		return false, nil
	}

	h := txn.New(t.store, t.rootLock.Unlock)
	h.AddRoot()

	leaf, err := t.descend(h, key, modeDelete)
	if err != nil {
		h.ReleaseAll()
		return false, err
	}

	idx, found := leafSearch(leaf.nd, key, t.cmp)
	if !found {
		h.ReleaseAll()
		leaf.page.WUnlatch()
		return false, t.store.UnpinPage(leaf.nd.pageID, false)
	}
	removeFromLeaf(leaf.nd, idx)

	if leaf.nd.parentID == pagestore.InvalidPageID {
		// The leaf is the whole tree.
		if err := leaf.flush(); err != nil {
			h.ReleaseAll()
			leaf.page.WUnlatch()
			_ = t.store.UnpinPage(leaf.nd.pageID, true)
			return false, err
		}
		if leaf.nd.size == 0 {
			t.rootID = pagestore.InvalidPageID
			if err := t.saveRoot(); err != nil {
				h.ReleaseAll()
				leaf.page.WUnlatch()
				_ = t.store.UnpinPage(leaf.nd.pageID, true)
				return false, err
			}
		}
		h.ReleaseAll()
		leaf.page.WUnlatch()
		return true, t.store.UnpinPage(leaf.nd.pageID, true)
	}

	if leaf.nd.size >= t.leafMin {
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

	if err := t.fixLeafUnderflow(h, leaf); err != nil {
		leaf.page.WUnlatch()
		_ = t.store.UnpinPage(leaf.nd.pageID, true)
		return false, err
	}
	leaf.page.WUnlatch()
	return true, t.store.UnpinPage(leaf.nd.pageID, true)
}

// siblings fetches (and write-latches) leaf's immediate left/right
// siblings under the same parent, if they exist. Either may be nil at the
// edge of the parent's child list.
func (t *BPlusTree) siblings(parent *nodeRef, idx int) (left, right *nodeRef, err error) {
	if idx > 0 {
		left, err = t.fetchNode(parent.nd.children[idx-1])
		if err != nil {
			return nil, nil, err
		}
		left.page.WLatch()
	}
	if idx < parent.nd.size-1 {
		right, err = t.fetchNode(parent.nd.children[idx+1])
		if err != nil {
			if left != nil {
				left.page.WUnlatch()
				_ = t.store.UnpinPage(left.nd.pageID, false)
			}
			return nil, nil, err
		}
		right.page.WLatch()
	}
	return left, right, nil
}

func releaseSibling(store interface {
	UnpinPage(int64, bool) error
}, ref *nodeRef, dirty bool) error {
	if ref == nil {
		return nil
	}
	ref.page.WUnlatch()
	return store.UnpinPage(ref.nd.pageID, dirty)
}

// fixLeafUnderflow steals from a sibling or merges with one, following
// bustub's steal-then-merge Remove algorithm.
func (t *BPlusTree) fixLeafUnderflow(h *txn.Handle, leaf *nodeRef) error {
	parent, err := t.takeOrFetchWrite(h, leaf.nd.parentID)
	if err != nil {
		return err
	}
	idx := parent.nd.indexOfChild(leaf.nd.pageID)
	left, right, err := t.siblings(parent, idx)
	if err != nil {
		h.ReleaseAll()
		parent.page.WUnlatch()
		_ = t.store.UnpinPage(parent.nd.pageID, false)
		return err
	}

	switch {
	case left != nil && left.nd.size > t.leafMin:
		stealLeafFromLeft(leaf.nd, left.nd)
		parent.nd.keys[idx] = leaf.nd.keys[0]
		if err := writeAll(leaf, left, parent); err != nil {
			return err
		}
		h.ReleaseAll()
		_ = releaseSibling(t.store, right, false)
		parent.page.WUnlatch()
		if err := t.store.UnpinPage(parent.nd.pageID, true); err != nil {
			return err
		}
		return releaseSibling(t.store, left, true)

	case right != nil && right.nd.size > t.leafMin:
		stealLeafFromRight(leaf.nd, right.nd)
		parent.nd.keys[idx+1] = right.nd.keys[0]
		if err := writeAll(leaf, right, parent); err != nil {
			return err
		}
		h.ReleaseAll()
		_ = releaseSibling(t.store, left, false)
		parent.page.WUnlatch()
		if err := t.store.UnpinPage(parent.nd.pageID, true); err != nil {
			return err
		}
		return releaseSibling(t.store, right, true)

	case left != nil:
		mergeLeaves(left.nd, leaf.nd)
		if err := left.flush(); err != nil {
			return err
		}
		if err := t.store.DeletePage(leaf.nd.pageID); err != nil {
			return err
		}
		_ = releaseSibling(t.store, right, false)
		if err := releaseSibling(t.store, left, true); err != nil {
			return err
		}
		return t.removeInternalEntry(h, parent, idx)

	default:
		mergeLeaves(leaf.nd, right.nd)
		if err := leaf.flush(); err != nil {
			return err
		}
		if err := t.store.DeletePage(right.nd.pageID); err != nil {
			return err
		}
		_ = releaseSibling(t.store, left, false)
		return t.removeInternalEntry(h, parent, idx+1)
	}
}

func stealLeafFromLeft(dst, src *node) {
	k := src.keys[src.size-1]
	v := src.values[src.size-1]
	dst.keys = append([][]byte{k}, dst.keys...)
	dst.values = append([][]byte{v}, dst.values...)
	dst.size++
	src.keys = src.keys[:src.size-1]
	src.values = src.values[:src.size-1]
	src.size--
}

func stealLeafFromRight(dst, src *node) {
	dst.keys = append(dst.keys, src.keys[0])
	dst.values = append(dst.values, src.values[0])
	dst.size++
	src.keys = src.keys[1:]
	src.values = src.values[1:]
	src.size--
}

// mergeLeaves appends right's entries onto left and adopts right's next
// pointer; right is left for the caller to delete.
func mergeLeaves(left, right *node) {
	left.keys = append(left.keys, right.keys...)
	left.values = append(left.values, right.values...)
	left.size += right.size
	left.nextPageID = right.nextPageID
}

func writeAll(refs ...*nodeRef) error {
	for _, r := range refs {
		if err := r.flush(); err != nil {
			return err
		}
	}
	return nil
}

// removeInternalEntry deletes the (key, child) pair at removeIdx from
// parent, then recursively fixes underflow, collapses the root, or simply
// releases the latch chain, mirroring bustub's RemoveInternalPageKey.
func (t *BPlusTree) removeInternalEntry(h *txn.Handle, parent *nodeRef, removeIdx int) error {
	removeChildAt(parent.nd, removeIdx)

	if parent.nd.parentID == pagestore.InvalidPageID {
		if parent.nd.size == 1 {
			onlyChild := parent.nd.children[0]
			t.rootID = onlyChild
			if err := t.saveRoot(); err != nil {
				return err
			}
			if err := t.reparent(onlyChild, pagestore.InvalidPageID); err != nil {
				return err
			}
			h.ReleaseAll()
			parent.page.WUnlatch()
			if err := t.store.UnpinPage(parent.nd.pageID, true); err != nil {
				return err
			}
			return t.store.DeletePage(parent.nd.pageID)
		}
		if err := parent.flush(); err != nil {
			return err
		}
		h.ReleaseAll()
		parent.page.WUnlatch()
		return t.store.UnpinPage(parent.nd.pageID, true)
	}

	if parent.nd.size >= t.internalMin {
		if err := parent.flush(); err != nil {
			return err
		}
		h.ReleaseAll()
		parent.page.WUnlatch()
		return t.store.UnpinPage(parent.nd.pageID, true)
	}

	return t.fixInternalUnderflow(h, parent)
}

func (t *BPlusTree) fixInternalUnderflow(h *txn.Handle, node *nodeRef) error {
	grandparent, err := t.takeOrFetchWrite(h, node.nd.parentID)
	if err != nil {
		return err
	}
	idx := grandparent.nd.indexOfChild(node.nd.pageID)
	left, right, err := t.siblings(grandparent, idx)
	if err != nil {
		h.ReleaseAll()
		grandparent.page.WUnlatch()
		_ = t.store.UnpinPage(grandparent.nd.pageID, false)
		return err
	}

	switch {
	case left != nil && left.nd.size > t.internalMin:
		if err := t.stealInternalFromLeft(node.nd, left.nd, grandparent.nd, idx); err != nil {
			return err
		}
		if err := writeAll(node, left, grandparent); err != nil {
			return err
		}
		h.ReleaseAll()
		_ = releaseSibling(t.store, right, false)
		grandparent.page.WUnlatch()
		if err := t.store.UnpinPage(grandparent.nd.pageID, true); err != nil {
			return err
		}
		return releaseSibling(t.store, left, true)

	case right != nil && right.nd.size > t.internalMin:
		if err := t.stealInternalFromRight(node.nd, right.nd, grandparent.nd, idx); err != nil {
			return err
		}
		if err := writeAll(node, right, grandparent); err != nil {
			return err
		}
		h.ReleaseAll()
		_ = releaseSibling(t.store, left, false)
		grandparent.page.WUnlatch()
		if err := t.store.UnpinPage(grandparent.nd.pageID, true); err != nil {
			return err
		}
		return releaseSibling(t.store, right, true)

	case left != nil:
		sepKey := grandparent.nd.keys[idx]
		if err := t.mergeInternal(left.nd, node.nd, sepKey); err != nil {
			return err
		}
		if err := left.flush(); err != nil {
			return err
		}
		if err := t.store.DeletePage(node.nd.pageID); err != nil {
			return err
		}
		_ = releaseSibling(t.store, right, false)
		if err := releaseSibling(t.store, left, true); err != nil {
			return err
		}
		return t.removeInternalEntry(h, grandparent, idx)

	default:
		sepKey := grandparent.nd.keys[idx+1]
		if err := t.mergeInternal(node.nd, right.nd, sepKey); err != nil {
			return err
		}
		if err := node.flush(); err != nil {
			return err
		}
		if err := t.store.DeletePage(right.nd.pageID); err != nil {
			return err
		}
		_ = releaseSibling(t.store, left, false)
		return t.removeInternalEntry(h, grandparent, idx+1)
	}
}

// stealInternalFromLeft moves src's last child (and the separator that
// headed it) across to the front of dst, reparenting the moved child and
// updating the grandparent's separator at parentIdx.
func (t *BPlusTree) stealInternalFromLeft(dst, src, parent *node, parentIdx int) error {
	movedChild := src.children[src.size-1]
	// The key that moves up to become dst's new slot-0-adjacent separator
	// is the grandparent's current separator for dst; the key that stays
	// behind in parent for src is src's last key.
	oldSep := parent.keys[parentIdx]

	dst.children = append([]int64{movedChild}, dst.children...)
	dst.keys = append([][]byte{nil, oldSep}, dst.keys[1:]...)
	dst.size++

	parent.keys[parentIdx] = src.keys[src.size-1]

	src.children = src.children[:src.size-1]
	src.keys = src.keys[:src.size-1]
	src.size--

	return t.reparent(movedChild, dst.pageID)
}

func (t *BPlusTree) stealInternalFromRight(dst, src, parent *node, parentIdx int) error {
	movedChild := src.children[0]
	oldSep := parent.keys[parentIdx+1]

	dst.children = append(dst.children, movedChild)
	dst.keys = append(dst.keys, oldSep)
	dst.size++

	parent.keys[parentIdx+1] = src.keys[1]

	src.children = src.children[1:]
	src.keys = append([][]byte{nil}, src.keys[2:]...)
	src.size--

	return t.reparent(movedChild, dst.pageID)
}

// mergeInternal appends right's children onto left, using sepKey (the
// grandparent's separator between them) as the key for right's first
// (otherwise-unused) child slot.
func (t *BPlusTree) mergeInternal(left, right *node, sepKey []byte) error {
	left.children = append(left.children, right.children...)
	left.keys = append(left.keys, right.keys...)
	left.keys[left.size] = sepKey
	left.size += right.size

	for _, c := range right.children {
		if err := t.reparent(c, left.pageID); err != nil {
			return err
		}
	}
	return nil
}
