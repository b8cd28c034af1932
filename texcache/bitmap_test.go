package texcache

import "testing"

func TestResidencyBitmap(t *testing.T) {
	var r residencyBitmap
	r.grow(100)
	if r.wordLen() < 4 {
		t.Fatalf("residencyBitmap.wordLen: have %d, want >= 4 for 100 bits", r.wordLen())
	}

	for _, id := range []int{0, 31, 32, 63, 99} {
		if r.isSet(id) {
			t.Fatalf("residencyBitmap.isSet(%d): unexpected true before set", id)
		}
		r.set(id)
		if !r.isSet(id) {
			t.Fatalf("residencyBitmap.isSet(%d): unexpected false after set", id)
		}
	}

	r.unset(32)
	if r.isSet(32) {
		t.Fatal("residencyBitmap.isSet(32): unexpected true after unset")
	}
	if !r.isSet(31) || !r.isSet(63) {
		t.Fatal("residencyBitmap.unset: must not disturb neighboring bits")
	}

	words := r.words()
	if len(words) != r.wordLen() {
		t.Fatalf("residencyBitmap.words: have len %d, want %d", len(words), r.wordLen())
	}
	// id 0 lives in word 0, bit 0.
	if words[0]&1 == 0 {
		t.Fatal("residencyBitmap.words: bit 0 of word 0 must reflect id 0's set state")
	}
}
