// Command indexcore is a small demo wiring the replacer, extendible hash
// table, page store, and B+ tree together end to end, in the spirit of
// the teacher's bplustree.Bplus() smoke test.
package main

import (
	"bytes"
	"fmt"

	"indexcore/bplustree"
	"indexcore/hashtable"
	"indexcore/pagestore"
)

func main() {
	fmt.Println("=== Index Core Demo ===")

	store := pagestore.NewMemStore(32, 2)
	store.SetVerbose(true)

	tree, err := bplustree.NewBPlusTree("students", store, bytes.Compare, 4, 4)
	if err != nil {
		fmt.Println("open tree:", err)
		return
	}

	students := []struct {
		id, record string
	}{
		{"S001", "Alice Johnson|A"},
		{"S002", "Bob Smith|B"},
		{"S003", "Charlie Brown|A"},
		{"S004", "Diana Prince|C"},
		{"S005", "Eve Wilson|B"},
	}

	for _, s := range students {
		ok, err := tree.Insert([]byte(s.id), []byte(s.record))
		if err != nil {
			fmt.Println("insert error:", err)
			return
		}
		fmt.Printf("Inserted: %s -> %s (ok=%v)\n", s.id, s.record, ok)
	}

	fmt.Println("\n=== Searching Students ===")
	for _, id := range []string{"S001", "S003", "S999"} {
		val, found, err := tree.Get([]byte(id))
		if err != nil {
			fmt.Println("get error:", err)
			return
		}
		if found {
			fmt.Printf("Found %s: %s\n", id, string(val))
		} else {
			fmt.Printf("Student %s not found\n", id)
		}
	}

	fmt.Println("\n=== Range Scan ===")
	it, err := tree.Begin(nil)
	if err != nil {
		fmt.Println("begin error:", err)
		return
	}
	for !it.IsEnd() {
		k, _ := it.Key()
		v, _ := it.Value()
		fmt.Printf("%s -> %s\n", k, v)
		if err := it.Next(); err != nil {
			fmt.Println("next error:", err)
			break
		}
	}
	_ = it.Close()

	fmt.Println("\n=== Extendible Hash Table ===")
	dir := hashtable.NewTable[int64, string](2, hashtable.HashInt64)
	for i := int64(0); i < 16; i++ {
		dir.Insert(i, fmt.Sprintf("page-%d", i))
	}
	fmt.Printf("global depth=%d, buckets=%d\n", dir.GlobalDepth(), dir.NumBuckets())

	fmt.Printf("\nPool size: %d frames\n", store.PoolSize())
}
