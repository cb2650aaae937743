package pagestore

import (
	"encoding/binary"
	"fmt"
)

// HeaderPage wraps the reserved HeaderPageID page with a simple
// name -> root_page_id directory, the on-page record bustub's header page
// keeps for each index it hosts (spec.md §6, SPEC_FULL.md §4.1). A B+ tree
// opened against the same store recovers its root page ID from here
// instead of needing an external hand-off.
//
// Layout: [uint32 count]{[uint16 nameLen][name bytes][int64 rootPageID]}*
type HeaderPage struct {
	page *Page
}

func NewHeaderPage(p *Page) *HeaderPage { return &HeaderPage{page: p} }

func (h *HeaderPage) records() map[string]int64 {
	out := make(map[string]int64)
	data := h.page.Data
	if len(data) < 4 {
		return out
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+2 > len(data) {
			break
		}
		nameLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if off+nameLen+8 > len(data) {
			break
		}
		name := string(data[off : off+nameLen])
		off += nameLen
		id := int64(binary.LittleEndian.Uint64(data[off : off+8]))
		off += 8
		out[name] = id
	}
	return out
}

func (h *HeaderPage) write(recs map[string]int64) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(recs)))
	for name, id := range recs {
		if len(name) > 1<<16-1 {
			return fmt.Errorf("pagestore: header record name too long: %d bytes", len(name))
		}
		entry := make([]byte, 2+len(name)+8)
		binary.LittleEndian.PutUint16(entry[0:2], uint16(len(name)))
		copy(entry[2:2+len(name)], name)
		binary.LittleEndian.PutUint64(entry[2+len(name):], uint64(id))
		buf = append(buf, entry...)
	}
	if len(buf) > len(h.page.Data) {
		return fmt.Errorf("pagestore: header page overflow: %d records need %d bytes, have %d", len(recs), len(buf), len(h.page.Data))
	}
	copy(h.page.Data, buf)
	for i := len(buf); i < len(h.page.Data); i++ {
		h.page.Data[i] = 0
	}
	return nil
}

// GetRootPageID looks up the root page ID registered for name.
func (h *HeaderPage) GetRootPageID(name string) (int64, bool) {
	id, ok := h.records()[name]
	return id, ok
}

// InsertRecord registers name -> rootPageID, failing if name already
// exists (mirrors bustub's InsertRecord/UpdateRecord split).
func (h *HeaderPage) InsertRecord(name string, rootPageID int64) error {
	recs := h.records()
	if _, exists := recs[name]; exists {
		return fmt.Errorf("pagestore: header record %q already exists", name)
	}
	recs[name] = rootPageID
	return h.write(recs)
}

// UpdateRecord overwrites (or creates) name -> rootPageID.
func (h *HeaderPage) UpdateRecord(name string, rootPageID int64) error {
	recs := h.records()
	recs[name] = rootPageID
	return h.write(recs)
}

// DeleteRecord removes name's entry, if present.
func (h *HeaderPage) DeleteRecord(name string) {
	recs := h.records()
	delete(recs, name)
	_ = h.write(recs)
}
