package texcache

import "testing"

func TestDirtyRangeMark(t *testing.T) {
	var d dirtyRange
	if !d.isEmpty() {
		t.Fatal("dirtyRange.isEmpty: unexpected false for zero value")
	}

	d.mark(5)
	if d.isEmpty() {
		t.Fatal("dirtyRange.isEmpty: unexpected true after mark")
	}
	lo, hi := d.interval()
	if lo != 5 || hi != 6 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (5,6)", lo, hi)
	}

	d.mark(2)
	d.mark(9)
	lo, hi = d.interval()
	if lo != 2 || hi != 10 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (2,10)", lo, hi)
	}

	d.clear()
	if !d.isEmpty() {
		t.Fatal("dirtyRange.isEmpty: unexpected false after clear")
	}
	lo, hi = d.interval()
	if lo != 0 || hi != 0 {
		t.Fatalf("dirtyRange.interval: \nhave (%d,%d)\nwant (0,0) after clear", lo, hi)
	}
}

func TestDirtyRangeMarkRange(t *testing.T) {
	var d dirtyRange
	d.markRange(10, 20)
	lo, hi := d.interval()
	if lo != 10 || hi != 20 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (10,20)", lo, hi)
	}

	d.markRange(15, 18) // fully inside, no change
	lo, hi = d.interval()
	if lo != 10 || hi != 20 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (10,20)", lo, hi)
	}

	d.markRange(5, 12) // extends begin
	lo, hi = d.interval()
	if lo != 5 || hi != 20 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (5,20)", lo, hi)
	}

	d.markRange(18, 30) // extends end
	lo, hi = d.interval()
	if lo != 5 || hi != 30 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (5,30)", lo, hi)
	}

	d.markRange(100, 100) // empty range, no-op
	lo, hi = d.interval()
	if lo != 5 || hi != 30 {
		t.Fatalf("dirtyRange.interval: markRange with hi<=lo must be a no-op")
	}
}

func TestDirtyRangeMarkAll(t *testing.T) {
	var d dirtyRange
	d.markAll(4096)
	lo, hi := d.interval()
	if lo != 0 || hi != 4096 {
		t.Fatalf("dirtyRange.interval:\nhave (%d,%d)\nwant (0,4096)", lo, hi)
	}

	d.markAll(0)
	if !d.isEmpty() {
		t.Fatal("dirtyRange.markAll(0): expected empty")
	}
}
