package texcache

import "testing"

func TestRequestRingAppendSnapshot(t *testing.T) {
	r := newRequestRing(4)
	for _, id := range []uint32{10, 20, 30} {
		r.append(id)
	}
	ids, count, overflow := r.snapshot()
	if count != 3 || overflow {
		t.Fatalf("requestRing.snapshot: have (count=%d,overflow=%v), want (3,false)", count, overflow)
	}
	if len(ids) != 3 || ids[0] != 10 || ids[1] != 20 || ids[2] != 30 {
		t.Fatalf("requestRing.snapshot: have ids %v, want [10 20 30]", ids)
	}
}

func TestRequestRingOverflow(t *testing.T) {
	r := newRequestRing(2)
	for _, id := range []uint32{1, 2, 3} {
		r.append(id)
	}
	ids, count, overflow := r.snapshot()
	if !overflow {
		t.Fatal("requestRing.snapshot: expected overflow once appends exceed capacity")
	}
	if count != 3 {
		t.Fatalf("requestRing.snapshot: have raw count %d, want 3 (reported even though it exceeds capacity)", count)
	}
	if len(ids) != 2 {
		t.Fatalf("requestRing.snapshot: have %d ids, want 2 (bounded by capacity)", len(ids))
	}
}

func TestRequestRingReset(t *testing.T) {
	r := newRequestRing(4)
	r.append(1)
	r.append(2)
	r.reset()
	ids, count, overflow := r.snapshot()
	if count != 0 || overflow || len(ids) != 0 {
		t.Fatalf("requestRing.reset: have (%v,%d,%v), want ([],0,false)", ids, count, overflow)
	}
}

func TestRequestRingAppendStopsAfterOverflow(t *testing.T) {
	r := newRequestRing(1)
	r.append(1) // fills capacity
	r.append(2) // trips overflow
	r.append(3) // must be a no-op once overflow is set
	ids, count, _ := r.snapshot()
	if count != 2 {
		t.Fatalf("requestRing.append: have count %d, want 2 (append after overflow must not advance the counter)", count)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("requestRing.append: have ids %v, want [1]", ids)
	}
}
