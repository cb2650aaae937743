// Package hashtable implements a generic extendible hash table
// (spec.md §4.2), ported from bustub's extendible_hash_table.cpp
// (_examples/original_source/src/container/hash/extendible_hash_table.cpp).
//
// Directory growth doubles the directory and splits exactly one bucket;
// everything else fans out from there.
package hashtable

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2/z"
)

// HashFunc maps a key to a 64-bit hash. The table only ever consults the
// low globalDepth bits, so any well-mixed hash works.
type HashFunc[K comparable] func(K) uint64

// entry is one occupied slot in a bucket.
type entry[K comparable, V any] struct {
	key K
	val V
}

// bucket is a fixed-capacity, linearly-scanned set of entries guarded by
// its own latch (spec.md §5: "bucket-level latches guard bucket contents").
type bucket[K comparable, V any] struct {
	mu      sync.RWMutex
	depth   int
	items   []entry[K, V]
	maxSize int
}

func newBucket[K comparable, V any](depth, maxSize int) *bucket[K, V] {
	return &bucket[K, V]{depth: depth, maxSize: maxSize}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, e := range b.items {
		if e.key == key {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i, e := range b.items {
		if e.key == key {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// insert overwrites an existing key's value, or appends if there's room.
// It reports false only when the key is new and the bucket is full.
func (b *bucket[K, V]) insert(key K, val V) bool {
	for i, e := range b.items {
		if e.key == key {
			b.items[i].val = val
			return true
		}
	}
	if len(b.items) >= b.maxSize {
		return false
	}
	b.items = append(b.items, entry[K, V]{key, val})
	return true
}

// Table is a generic extendible hash table: Table[int64, int] backs the
// buffer pool's page_id -> frame map; Table[string, int64] could back a
// name -> root_page_id directory if one were not already page-resident
// (spec.md §6 keeps that one on the header page instead).
type Table[K comparable, V any] struct {
	mu          sync.RWMutex // directory-level latch
	globalDepth int
	bucketSize  int
	numBuckets  int
	dir         []*bucket[K, V]
	hash        HashFunc[K]
}

// NewTable builds a table whose buckets hold up to bucketSize entries
// before splitting, hashing keys with hash.
func NewTable[K comparable, V any](bucketSize int, hash HashFunc[K]) *Table[K, V] {
	if bucketSize < 1 {
		bucketSize = 1
	}
	return &Table[K, V]{
		bucketSize: bucketSize,
		numBuckets: 1,
		dir:        []*bucket[K, V]{newBucket[K, V](0, bucketSize)},
		hash:       hash,
	}
}

// HashInt64 and HashString are convenience HashFunc
// implementations built on ristretto's exported mixing primitive
// (SPEC_FULL.md §3): ristretto declares a direct dependency the teacher
// never imports, so this gives it a real call site instead of dropping it.
func HashInt64(k int64) uint64 {
	var b [8]byte
	u := uint64(k)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return z.MemHash(b[:])
}

func HashString(s string) uint64 { return z.MemHashString(s) }

func (t *Table[K, V]) indexOfLocked(key K) int {
	mask := uint64(1<<t.globalDepth) - 1
	return int(t.hash(key) & mask)
}

// Find returns the value stored for key, if any.
func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.dir[t.indexOfLocked(key)]

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.find(key)
}

// Remove deletes key if present, reporting whether it was found. Bucket
// occupancy never triggers a merge back down (spec.md §4.2: shrinking is
// out of scope).
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.dir[t.indexOfLocked(key)]

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove(key)
}

// Insert adds or overwrites key/val, growing the directory and splitting
// buckets as many times as needed to make room.
func (t *Table[K, V]) Insert(key K, val V) {
	t.mu.RLock()
	b := t.dir[t.indexOfLocked(key)]
	b.mu.Lock()
	ok := b.insert(key, val)
	b.mu.Unlock()
	t.mu.RUnlock()
	if ok {
		return
	}

	// Slow path: grow. Bustub's StrictInsert recurses back into Insert
	// (re-acquiring the directory latch each time) after every split; Go's
	// sync.RWMutex isn't reentrant, so this holds the exclusive directory
	// latch across the whole grow-and-retry loop instead of releasing and
	// re-acquiring it (see DESIGN.md).
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		idx := t.indexOfLocked(key)
		b := t.dir[idx]
		if b.insert(key, val) {
			return
		}
		if b.depth == t.globalDepth {
			t.doubleAndSplit(idx)
		} else {
			t.splitBucket(idx, b.depth)
		}
	}
}

// doubleAndSplit doubles the directory and splits the single bucket at idx
// (whose local depth already equals the global depth), following
// DoubleDir+the dir_[idx]->IncrementDepth() call in StrictInsert.
func (t *Table[K, V]) doubleAndSplit(idx int) {
	oldSize := 1 << t.globalDepth
	newDir := make([]*bucket[K, V], oldSize*2)
	copy(newDir[:oldSize], t.dir)
	copy(newDir[oldSize:], t.dir)

	newDepth := t.globalDepth + 1
	sibling := newBucket[K, V](newDepth, t.bucketSize)
	newDir[idx+oldSize] = sibling
	t.dir = newDir
	t.globalDepth = newDepth
	t.numBuckets++

	old := t.dir[idx]
	old.depth = newDepth
	t.redistribute(old, sibling)
}

// splitBucket splits the bucket at idx without growing the directory: its
// local depth is below the global depth, so some other directory slot
// already points at the same bucket and gets repointed at the new sibling.
func (t *Table[K, V]) splitBucket(idx, localDepth int) {
	old := t.dir[idx]
	newDepth := localDepth + 1
	sibling := newBucket[K, V](newDepth, t.bucketSize)
	mask := 1 << localDepth

	dirSize := 1 << t.globalDepth
	for i := 0; i < dirSize; i++ {
		if t.dir[i] == old && (i&mask) != (idx&mask) {
			t.dir[i] = sibling
		}
	}
	old.depth = newDepth
	t.numBuckets++
	t.redistribute(old, sibling)
}

// redistribute moves entries of old into sibling wherever the directory
// now routes their key to sibling instead of old (bustub's
// RedistributeBucket).
func (t *Table[K, V]) redistribute(old, sibling *bucket[K, V]) {
	items := make([]entry[K, V], len(old.items))
	copy(items, old.items)
	for _, e := range items {
		if t.dir[t.indexOfLocked(e.key)] != old {
			old.remove(e.key)
			if !sibling.insert(e.key, e.val) {
				panic(fmt.Sprintf("hashtable: redistribute overflowed a freshly split bucket (bucket_size=%d)", t.bucketSize))
			}
		}
	}
}

// GlobalDepth returns the directory's current global depth.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket indexed at dirIndex.
func (t *Table[K, V]) LocalDepth(dirIndex int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dir[dirIndex].depth
}

// NumBuckets returns the number of distinct buckets currently allocated.
func (t *Table[K, V]) NumBuckets() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.numBuckets
}
