package sync

import (
	"math/rand"
	"sort"
	"testing"
)

func intLess(a, b int) bool { return a < b }

func TestRBTreeInsertGet(t *testing.T) {
	tr := NewRBTree[int, string](intLess)

	tr.Insert(5, "five")
	tr.Insert(3, "three")
	tr.Insert(8, "eight")

	if v, ok := tr.Get(3); !ok || v != "three" {
		t.Fatalf("expected three, got %q ok=%v", v, ok)
	}
	if _, ok := tr.Get(42); ok {
		t.Fatal("expected lookup of absent key to fail")
	}
	if tr.Len() != 3 {
		t.Fatalf("expected len 3, got %d", tr.Len())
	}

	tr.Insert(5, "FIVE")
	if v, _ := tr.Get(5); v != "FIVE" {
		t.Fatalf("expected overwritten value FIVE, got %q", v)
	}
	if tr.Len() != 3 {
		t.Fatalf("expected len to stay 3 after overwrite, got %d", tr.Len())
	}
}

func TestRBTreeWalkOrdered(t *testing.T) {
	tr := NewRBTree[int, int](intLess)

	keys := []int{42, 7, 19, 3, 99, 1, 56, 23, 8, 64}
	for _, k := range keys {
		tr.Insert(k, k*10)
	}

	var got []int
	tr.Walk(func(k, v int) bool {
		got = append(got, k)
		if v != k*10 {
			t.Errorf("key %d: expected val %d, got %d", k, k*10, v)
		}
		return true
	})

	want := append([]int(nil), keys...)
	sort.Ints(want)

	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("at %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRBTreeDelete(t *testing.T) {
	tr := NewRBTree[int, int](intLess)
	for i := 0; i < 20; i++ {
		tr.Insert(i, i)
	}

	if !tr.Delete(10) {
		t.Fatal("expected delete of present key to succeed")
	}
	if tr.Delete(10) {
		t.Fatal("expected second delete of same key to fail")
	}
	if _, ok := tr.Get(10); ok {
		t.Fatal("expected deleted key to be absent")
	}
	if tr.Len() != 19 {
		t.Fatalf("expected len 19, got %d", tr.Len())
	}

	var got []int
	tr.Walk(func(k, _ int) bool {
		got = append(got, k)
		return true
	})
	if !sort.IntsAreSorted(got) {
		t.Fatalf("tree not in sorted order after delete: %v", got)
	}
}

func TestRBTreeRandomizedInsertDelete(t *testing.T) {
	tr := NewRBTree[int, int](intLess)
	rng := rand.New(rand.NewSource(1))
	present := make(map[int]bool)

	const n = 500
	keys := rng.Perm(n)
	for _, k := range keys {
		tr.Insert(k, k)
		present[k] = true
	}
	if tr.Len() != n {
		t.Fatalf("expected len %d, got %d", n, tr.Len())
	}

	toDelete := keys[:n/2]
	for _, k := range toDelete {
		if !tr.Delete(k) {
			t.Fatalf("expected delete of %d to succeed", k)
		}
		delete(present, k)
	}
	if tr.Len() != len(present) {
		t.Fatalf("expected len %d, got %d", len(present), tr.Len())
	}

	var got []int
	tr.Walk(func(k, _ int) bool {
		got = append(got, k)
		return true
	})
	if !sort.IntsAreSorted(got) {
		t.Fatal("tree not in sorted order after bulk delete")
	}
	if len(got) != len(present) {
		t.Fatalf("expected %d remaining keys, got %d", len(present), len(got))
	}
	for _, k := range got {
		if !present[k] {
			t.Errorf("unexpected surviving key %d", k)
		}
	}
}
