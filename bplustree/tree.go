package bplustree

import (
	"bytes"
	"fmt"
	"sync"

	"indexcore/pagestore"
	"indexcore/txn"
)

// Comparator orders keys the way bytes.Compare does: negative if a<b, zero
// if equal, positive if a>b. Variable-width keys are supported only within
// whatever fixed-width family the comparator itself understands (spec.md
// §1 Non-goals).
type Comparator func(a, b []byte) int

// BytesComparator orders keys lexicographically.
func BytesComparator(a, b []byte) int { return bytes.Compare(a, b) }

// BPlusTree is a latch-crabbing, disk-backed ordered index (spec.md §4.3).
// One tree instance owns one name in the page store's header directory.
type BPlusTree struct {
	name   string
	store  pagestore.PageStore
	cmp    Comparator
	leafMax,
	internalMax,
	leafMin,
	internalMin int

	rootLock sync.RWMutex
	rootID   int64
}

// NewBPlusTree opens (or creates) the tree named name against store.
// leafMax/internalMax bound node fan-out. internalMin follows bustub's
// GetMinSize, (max+1)/2: an internal split always divides internalMax+1
// entries (the new entry is folded into a temporary array before the split
// point is chosen), so both halves clear that ceiling-rounded minimum.
// leafMin must instead be the floor, leafMax/2: a leaf split divides only
// leafMax entries (the node is split the instant it reaches leafMax, with
// no +1 headroom), so rounding the minimum up would leave the new right
// sibling under-full whenever leafMax is odd (see DESIGN.md).
func NewBPlusTree(name string, store pagestore.PageStore, cmp Comparator, leafMax, internalMax int) (*BPlusTree, error) {
	if leafMax < 3 || internalMax < 3 {
		return nil, fmt.Errorf("bplustree: leafMax/internalMax must be >= 3, got %d/%d", leafMax, internalMax)
	}
	t := &BPlusTree{
		name:        name,
		store:       store,
		cmp:         cmp,
		leafMax:     leafMax,
		internalMax: internalMax,
		leafMin:     leafMax / 2,
		internalMin: (internalMax + 1) / 2,
		rootID:      pagestore.InvalidPageID,
	}

	hp, err := store.FetchPage(pagestore.HeaderPageID)
	if err != nil {
		return nil, fmt.Errorf("bplustree: opening %q: %w", name, err)
	}
	hp.RLatch()
	if id, ok := pagestore.NewHeaderPage(hp).GetRootPageID(name); ok {
		t.rootID = id
	}
	hp.RUnlatch()
	if err := store.UnpinPage(pagestore.HeaderPageID, false); err != nil {
		return nil, err
	}
	return t, nil
}

// IsEmpty reports whether the tree currently has no entries.
func (t *BPlusTree) IsEmpty() bool {
	t.rootLock.RLock()
	defer t.rootLock.RUnlock()
	return t.rootID == pagestore.InvalidPageID
}

func (t *BPlusTree) saveRoot() error {
	hp, err := t.store.FetchPage(pagestore.HeaderPageID)
	if err != nil {
		return err
	}
	hp.WLatch()
	err = pagestore.NewHeaderPage(hp).UpdateRecord(t.name, t.rootID)
	hp.WUnlatch()
	if uErr := t.store.UnpinPage(pagestore.HeaderPageID, true); uErr != nil && err == nil {
		err = uErr
	}
	return err
}

// nodeRef pairs a fetched/new page with its decoded node view.
type nodeRef struct {
	page *pagestore.Page
	nd   *node
}

func (t *BPlusTree) fetchNode(id int64) (*nodeRef, error) {
	page, err := t.store.FetchPage(id)
	if err != nil {
		return nil, err
	}
	nd, err := decodeNode(page.Data)
	if err != nil {
		return nil, err
	}
	return &nodeRef{page, nd}, nil
}

func (t *BPlusTree) newLeaf(parentID int64) (*nodeRef, error) {
	page, err := t.store.NewPage()
	if err != nil {
		return nil, err
	}
	nd := newLeafNode(page.ID, parentID, t.leafMax)
	return &nodeRef{page, nd}, nil
}

func (t *BPlusTree) newInternal(parentID int64) (*nodeRef, error) {
	page, err := t.store.NewPage()
	if err != nil {
		return nil, err
	}
	nd := newInternalNode(page.ID, parentID, t.internalMax)
	return &nodeRef{page, nd}, nil
}

func (nr *nodeRef) flush() error { return encodeNode(nr.nd, nr.page.Data) }

// reparent loads childID's node, rewrites its parent pointer, and flushes
// it back, used when a split or merge moves a child to a new parent.
func (t *BPlusTree) reparent(childID, newParentID int64) error {
	ref, err := t.fetchNode(childID)
	if err != nil {
		return err
	}
	ref.nd.parentID = newParentID
	if err := ref.flush(); err != nil {
		return err
	}
	return t.store.UnpinPage(childID, true)
}

// Get looks up key, returning its value and whether it was found.
func (t *BPlusTree) Get(key []byte) ([]byte, bool, error) {
	t.rootLock.RLock()
	if t.rootID == pagestore.InvalidPageID {
		t.rootLock.RUnlock()
		return nil, false, nil
	}
	ref, err := t.fetchNode(t.rootID)
	if err != nil {
		t.rootLock.RUnlock()
		return nil, false, err
	}
	ref.page.RLatch()
	t.rootLock.RUnlock()

	for ref.nd.kind == internalKind {
		idx := internalChildIndex(ref.nd, key, t.cmp)
		childID := ref.nd.children[idx]
		child, err := t.fetchNode(childID)
		if err != nil {
			ref.page.RUnlatch()
			_ = t.store.UnpinPage(ref.nd.pageID, false)
			return nil, false, err
		}
		child.page.RLatch()
		ref.page.RUnlatch()
		if err := t.store.UnpinPage(ref.nd.pageID, false); err != nil {
			child.page.RUnlatch()
			_ = t.store.UnpinPage(child.nd.pageID, false)
			return nil, false, err
		}
		ref = child
	}

	idx, found := leafSearch(ref.nd, key, t.cmp)
	ref.page.RUnlatch()
	if uErr := t.store.UnpinPage(ref.nd.pageID, false); uErr != nil {
		return nil, false, uErr
	}
	if !found {
		return nil, false, nil
	}
	return ref.nd.values[idx], true, nil
}

type accessMode int

const (
	modeInsert accessMode = iota
	modeDelete
)

// descend performs the latch-crabbing traversal for insert/delete mode,
// returning the target leaf (write-latched, pinned, not yet queued into
// h) while h accumulates whichever ancestors cannot yet be proven safe to
// release (spec.md §5). The caller must already hold t.rootLock exclusive
// and have called h.AddRoot().
func (t *BPlusTree) descend(h *txn.Handle, key []byte, mode accessMode) (*nodeRef, error) {
	ref, err := t.fetchNode(t.rootID)
	if err != nil {
		return nil, err
	}
	ref.page.WLatch()

	for ref.nd.kind == internalKind {
		if t.safeDuringDescent(ref.nd, mode) {
			h.ReleaseAll()
		}
		h.AddPage(ref.page)

		idx := internalChildIndex(ref.nd, key, t.cmp)
		childID := ref.nd.children[idx]
		child, err := t.fetchNode(childID)
		if err != nil {
			return nil, err
		}
		child.page.WLatch()
		ref = child
	}

	if t.safeAtLeaf(ref.nd, mode) {
		h.ReleaseAll()
	}
	return ref, nil
}

// safeDuringDescent matches bustub's FindLeafPage loop check on an
// internal ancestor: for insert, size < max (not max-1, spec.md §9's
// open question resolved by following the source literally for this
// branch); for delete, size > min.
func (t *BPlusTree) safeDuringDescent(n *node, mode accessMode) bool {
	if mode == modeInsert {
		return n.size < t.internalMax
	}
	return n.size > t.internalMin
}

// safeAtLeaf matches bustub's post-descent-loop check on the leaf itself:
// for insert, size < max-1 (inserting one more entry will not reach max
// and trigger a split); for delete, size > min.
func (t *BPlusTree) safeAtLeaf(n *node, mode accessMode) bool {
	if mode == modeInsert {
		if n.isLeaf() {
			return n.size < t.leafMax-1
		}
		return n.size < t.internalMax
	}
	if n.isLeaf() {
		return n.size > t.leafMin
	}
	return n.size > t.internalMin
}
