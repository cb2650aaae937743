// Package bplustree implements the disk-backed B+ tree index (spec.md
// §4.3), ported from bustub's b_plus_tree.cpp, b_plus_tree_leaf_page.cpp,
// and b_plus_tree_internal_page.cpp
// (_examples/original_source/src/storage/index/).
package bplustree

import "indexcore/pagestore"

type kind uint8

const (
	leafKind kind = iota
	internalKind
)

// node is the decoded, in-memory view of one tree page. Leaf nodes use
// keys/values; internal nodes use keys/children, with keys[0] unused
// (spec.md §6: "slot 0 of an internal node stores only the child
// pointer; its key cell is unused").
type node struct {
	pageID   int64
	parentID int64
	kind     kind
	size     int
	maxSize  int

	keys   [][]byte
	values [][]byte // leaf only

	children   []int64 // internal only
	nextPageID int64   // leaf only
}

func newLeafNode(pageID, parentID int64, maxSize int) *node {
	return &node{
		pageID:     pageID,
		parentID:   parentID,
		kind:       leafKind,
		maxSize:    maxSize,
		nextPageID: pagestore.InvalidPageID,
	}
}

func newInternalNode(pageID, parentID int64, maxSize int) *node {
	return &node{
		pageID:   pageID,
		parentID: parentID,
		kind:     internalKind,
		maxSize:  maxSize,
	}
}

func (n *node) isLeaf() bool { return n.kind == leafKind }

// indexOfChild returns the position of childID in an internal node's
// children, or -1 if absent.
func (n *node) indexOfChild(childID int64) int {
	for i, c := range n.children {
		if c == childID {
			return i
		}
	}
	return -1
}

// leafSearch returns the position of key in a leaf's sorted key array, and
// whether it was found; if absent, the position is where it would be
// inserted to keep the array sorted.
func leafSearch(n *node, key []byte, cmp Comparator) (int, bool) {
	lo, hi := 0, n.size
	for lo < hi {
		mid := (lo + hi) / 2
		c := cmp(n.keys[mid], key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// internalChildIndex returns the index of the child to descend into for
// key: the rightmost slot whose key is <= key, treating the unused slot-0
// key as -infinity.
func internalChildIndex(n *node, key []byte, cmp Comparator) int {
	lo, hi := 1, n.size
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

func insertIntoLeaf(n *node, at int, key, val []byte) {
	n.keys = append(n.keys, nil)
	n.values = append(n.values, nil)
	copy(n.keys[at+1:], n.keys[at:])
	copy(n.values[at+1:], n.values[at:])
	n.keys[at] = key
	n.values[at] = val
	n.size++
}

func removeFromLeaf(n *node, at int) {
	n.keys = append(n.keys[:at], n.keys[at+1:]...)
	n.values = append(n.values[:at], n.values[at+1:]...)
	n.size--
}

func insertChildAt(n *node, at int, sepKey []byte, childID int64) {
	n.keys = append(n.keys, nil)
	n.children = append(n.children, 0)
	copy(n.keys[at+1:], n.keys[at:])
	copy(n.children[at+1:], n.children[at:])
	n.keys[at] = sepKey
	n.children[at] = childID
	n.size++
}

func removeChildAt(n *node, at int) {
	n.keys = append(n.keys[:at], n.keys[at+1:]...)
	n.children = append(n.children[:at], n.children[at+1:]...)
	n.size--
}
