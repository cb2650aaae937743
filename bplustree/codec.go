package bplustree

import (
	"encoding/binary"
	"fmt"

	"indexcore/pagestore"
)

// On-page layout (spec.md §6):
//
//	byte 0:       page kind (0 = leaf, 1 = internal)
//	bytes 1..5:   size (int32)
//	bytes 5..9:   max size (int32)
//	bytes 9..17:  parent page ID (int64)
//	bytes 17..25: page ID (int64)
//	leaf only, bytes 25..33: next page ID (int64)
//	then size entries:
//	  leaf:     uint16 keyLen, key, uint16 valLen, val
//	  internal: uint16 keyLen (0 for the unused slot-0 key), key, int64 childPageID
const (
	headerOffKind      = 0
	headerOffSize      = 1
	headerOffMaxSize   = 5
	headerOffParentID  = 9
	headerOffPageID    = 17
	leafOffNext        = 25
	leafArrayStart     = 33
	internalArrayStart = 25
)

func encodeNode(n *node, buf []byte) error {
	if len(buf) < pagestore.PageSize {
		return fmt.Errorf("bplustree: page buffer too small: %d", len(buf))
	}
	for i := range buf {
		buf[i] = 0
	}

	if n.isLeaf() {
		buf[headerOffKind] = byte(leafKind)
	} else {
		buf[headerOffKind] = byte(internalKind)
	}
	binary.LittleEndian.PutUint32(buf[headerOffSize:], uint32(n.size))
	binary.LittleEndian.PutUint32(buf[headerOffMaxSize:], uint32(n.maxSize))
	binary.LittleEndian.PutUint64(buf[headerOffParentID:], uint64(n.parentID))
	binary.LittleEndian.PutUint64(buf[headerOffPageID:], uint64(n.pageID))

	if n.isLeaf() {
		binary.LittleEndian.PutUint64(buf[leafOffNext:], uint64(n.nextPageID))
		off := leafArrayStart
		for i := 0; i < n.size; i++ {
			var err error
			off, err = putBytesField(buf, off, n.keys[i])
			if err != nil {
				return err
			}
			off, err = putBytesField(buf, off, n.values[i])
			if err != nil {
				return err
			}
		}
		return nil
	}

	off := internalArrayStart
	for i := 0; i < n.size; i++ {
		key := n.keys[i]
		if i == 0 {
			key = nil // slot 0's key cell is unused
		}
		var err error
		off, err = putBytesField(buf, off, key)
		if err != nil {
			return err
		}
		if off+8 > len(buf) {
			return fmt.Errorf("bplustree: node overflowed page (%d entries)", n.size)
		}
		binary.LittleEndian.PutUint64(buf[off:], uint64(n.children[i]))
		off += 8
	}
	return nil
}

func putBytesField(buf []byte, off int, data []byte) (int, error) {
	if off+2+len(data) > len(buf) {
		return 0, fmt.Errorf("bplustree: node overflowed page at field of %d bytes", len(data))
	}
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(data)))
	off += 2
	copy(buf[off:], data)
	off += len(data)
	return off, nil
}

func getBytesField(buf []byte, off int) ([]byte, int, error) {
	if off+2 > len(buf) {
		return nil, 0, fmt.Errorf("bplustree: truncated node field header")
	}
	n := int(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	if off+n > len(buf) {
		return nil, 0, fmt.Errorf("bplustree: truncated node field body")
	}
	data := append([]byte(nil), buf[off:off+n]...)
	off += n
	return data, off, nil
}

func decodeNode(buf []byte) (*node, error) {
	if len(buf) < pagestore.PageSize {
		return nil, fmt.Errorf("bplustree: page buffer too small: %d", len(buf))
	}
	k := kind(buf[headerOffKind])
	size := int(binary.LittleEndian.Uint32(buf[headerOffSize:]))
	maxSize := int(binary.LittleEndian.Uint32(buf[headerOffMaxSize:]))
	parentID := int64(binary.LittleEndian.Uint64(buf[headerOffParentID:]))
	pageID := int64(binary.LittleEndian.Uint64(buf[headerOffPageID:]))

	n := &node{pageID: pageID, parentID: parentID, kind: k, size: size, maxSize: maxSize}

	if k == leafKind {
		n.nextPageID = int64(binary.LittleEndian.Uint64(buf[leafOffNext:]))
		off := leafArrayStart
		n.keys = make([][]byte, size)
		n.values = make([][]byte, size)
		for i := 0; i < size; i++ {
			var err error
			n.keys[i], off, err = getBytesField(buf, off)
			if err != nil {
				return nil, err
			}
			n.values[i], off, err = getBytesField(buf, off)
			if err != nil {
				return nil, err
			}
		}
		return n, nil
	}

	off := internalArrayStart
	n.keys = make([][]byte, size)
	n.children = make([]int64, size)
	for i := 0; i < size; i++ {
		var err error
		n.keys[i], off, err = getBytesField(buf, off)
		if err != nil {
			return nil, err
		}
		if off+8 > len(buf) {
			return nil, fmt.Errorf("bplustree: truncated child pointer")
		}
		n.children[i] = int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	return n, nil
}
