package hashtable

import "testing"

func TestTable_InsertFindRemove(t *testing.T) {
	tbl := NewTable[int64, string](2, HashInt64)

	tbl.Insert(0, "a")
	tbl.Insert(4, "b")
	tbl.Insert(8, "c")

	for k, want := range map[int64]string{0: "a", 4: "b", 8: "c"} {
		got, ok := tbl.Find(k)
		if !ok || got != want {
			t.Fatalf("Find(%d) = %q, %v; want %q, true", k, got, ok, want)
		}
	}
	if tbl.NumBuckets() < 1 {
		t.Fatal("expected at least one bucket")
	}

	if !tbl.Remove(4) {
		t.Fatal("Remove(4) = false, want true")
	}
	if _, ok := tbl.Find(4); ok {
		t.Fatal("Find(4) succeeded after Remove")
	}
	if tbl.Remove(4) {
		t.Fatal("second Remove(4) = true, want false")
	}
}

func TestTable_OverwriteExistingKey(t *testing.T) {
	tbl := NewTable[int64, string](4, HashInt64)
	tbl.Insert(1, "first")
	tbl.Insert(1, "second")
	got, ok := tbl.Find(1)
	if !ok || got != "second" {
		t.Fatalf("Find(1) = %q, %v; want %q, true", got, ok, "second")
	}
}

func TestTable_GrowsUnderLoad(t *testing.T) {
	tbl := NewTable[int64, int](2, HashInt64)
	const n = 500
	for i := int64(0); i < n; i++ {
		tbl.Insert(i, int(i))
	}
	for i := int64(0); i < n; i++ {
		got, ok := tbl.Find(i)
		if !ok || got != int(i) {
			t.Fatalf("Find(%d) = %d, %v; want %d, true", i, got, ok, i)
		}
	}
	if tbl.GlobalDepth() == 0 {
		t.Fatal("expected directory to have grown")
	}
	if tbl.NumBuckets() < 2 {
		t.Fatal("expected multiple buckets after growth")
	}
}

func TestTable_LocalDepthNeverExceedsGlobalDepth(t *testing.T) {
	tbl := NewTable[int64, int](1, HashInt64)
	for i := int64(0); i < 200; i++ {
		tbl.Insert(i, int(i))
	}
	gd := tbl.GlobalDepth()
	for i := 0; i < 1<<gd; i++ {
		if ld := tbl.LocalDepth(i); ld > gd {
			t.Fatalf("bucket %d local depth %d exceeds global depth %d", i, ld, gd)
		}
	}
}

func TestTable_StringKeys(t *testing.T) {
	tbl := NewTable[string, int](2, HashString)
	tbl.Insert("alpha", 1)
	tbl.Insert("beta", 2)
	tbl.Insert("gamma", 3)
	for k, want := range map[string]int{"alpha": 1, "beta": 2, "gamma": 3} {
		if got, ok := tbl.Find(k); !ok || got != want {
			t.Fatalf("Find(%q) = %d, %v; want %d, true", k, got, ok, want)
		}
	}
}
