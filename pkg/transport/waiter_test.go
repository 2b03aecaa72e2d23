package transport

import (
	"testing"
)

func TestWaiterAllocUniqueSeq(t *testing.T) {
	tbl := NewWaiterTable()
	seen := map[byte]bool{}
	var allocated []*Waiter
	for i := 0; i < WaiterMax; i++ {
		n := 0
		w, err := tbl.Alloc(make([]byte, ArgsMax), &n)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		if w.seq == 0 {
			t.Fatal("seq 0 must never be assigned to a waiter")
		}
		if seen[w.seq] {
			t.Fatalf("seq %d assigned to two live waiters", w.seq)
		}
		seen[w.seq] = true
		allocated = append(allocated, w)
	}
	for _, w := range allocated {
		tbl.Free(w)
	}
}

func TestWaiterAllocFailsWhenFull(t *testing.T) {
	tbl := NewWaiterTable()
	for i := 0; i < WaiterMax; i++ {
		n := 0
		if _, err := tbl.Alloc(make([]byte, ArgsMax), &n); err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
	}
	// The retry budget is a constant, so this exercises the real retry
	// path (allocRetries sleeps of allocRetryDelay each); we only assert
	// failure, not timing.
	n := 0
	if _, err := tbl.Alloc(make([]byte, ArgsMax), &n); err != ErrNoWaiterSlot {
		t.Fatalf("Alloc on full table = %v, want ErrNoWaiterSlot", err)
	}
}

func TestWaiterFindThenFreeThenNotFound(t *testing.T) {
	tbl := NewWaiterTable()
	n := 0
	w, err := tbl.Alloc(make([]byte, ArgsMax), &n)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, ok := tbl.Find(w.seq); !ok {
		t.Fatal("Find should locate the allocated waiter")
	}
	tbl.Free(w)
	if _, ok := tbl.Find(w.seq); ok {
		t.Fatal("Find should not locate a freed waiter")
	}
}

func TestWaiterFreeDropsStaleLookupBeforeRealloc(t *testing.T) {
	tbl := NewWaiterTable()
	n1 := 0
	w1, err := tbl.Alloc(make([]byte, ArgsMax), &n1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	staleSeq := w1.seq
	tbl.Free(w1)

	// Before reallocation, a late response for the freed seq finds nothing.
	if _, ok := tbl.Find(staleSeq); ok {
		t.Fatal("Find should not locate a freed waiter before reuse")
	}
}
