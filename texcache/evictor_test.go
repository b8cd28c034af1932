package texcache

import "testing"

func mkResident(id int, priority EvictionPriority, loadedFrame, lastUsedFrame int64) *texture {
	tx := &texture{id: id, desc: TextureDescriptor{Priority: priority}, loadedFrame: loadedFrame, lastUsedFrame: lastUsedFrame}
	tx.resident.Store(true)
	return tx
}

func TestEvictorSelectVictimsPriorityOrder(t *testing.T) {
	e := newEvictor(0)
	textures := []*texture{
		mkResident(0, PriorityNormal, 0, 0),
		mkResident(1, PriorityLow, 0, 1),
		mkResident(2, PriorityHigh, 0, 2),
		mkResident(3, PriorityKeepResident, 0, 3),
	}
	victims := e.selectVictims(textures, 10)
	if len(victims) != 3 {
		t.Fatalf("evictor.selectVictims: have %d candidates, want 3 (KeepResident excluded)", len(victims))
	}
	if victims[0] != 1 || victims[1] != 0 || victims[2] != 2 {
		t.Fatalf("evictor.selectVictims: have order %v, want [1 0 2] (Low, Normal, High)", victims)
	}
}

func TestEvictorSelectVictimsTieBreakOnLastUsed(t *testing.T) {
	e := newEvictor(0)
	textures := []*texture{
		mkResident(0, PriorityNormal, 0, 5),
		mkResident(1, PriorityNormal, 0, 2),
	}
	victims := e.selectVictims(textures, 10)
	if len(victims) != 2 || victims[0] != 1 || victims[1] != 0 {
		t.Fatalf("evictor.selectVictims: have %v, want [1 0] (oldest last_used_frame first)", victims)
	}
}

func TestEvictorSelectVictimsHoldDown(t *testing.T) {
	e := newEvictor(3)
	textures := []*texture{
		mkResident(0, PriorityNormal, 0, 0), // loaded at frame 0
	}
	if victims := e.selectVictims(textures, 2); len(victims) != 0 {
		t.Fatalf("evictor.selectVictims: have %v, want [] (still inside hold-down at frame 2)", victims)
	}
	if victims := e.selectVictims(textures, 3); len(victims) != 1 {
		t.Fatalf("evictor.selectVictims: have %v, want [0] (hold-down expires exactly at frame 3)", victims)
	}
}

func TestEvictorSelectVictimsExcludesNonResidentAndLoading(t *testing.T) {
	e := newEvictor(0)
	loading := &texture{id: 0, desc: TextureDescriptor{Priority: PriorityNormal}}
	loading.loading.Store(true)
	notResident := &texture{id: 1, desc: TextureDescriptor{Priority: PriorityNormal}}
	victims := e.selectVictims([]*texture{loading, notResident}, 10)
	if len(victims) != 0 {
		t.Fatalf("evictor.selectVictims: have %v, want [] (loading/non-resident excluded)", victims)
	}
}

func TestEvictorSelectVictimsTieBreakOnID(t *testing.T) {
	e := newEvictor(0)
	textures := []*texture{
		mkResident(0, PriorityNormal, 1, 1),
		mkResident(1, PriorityNormal, 1, 1),
	}
	victims := e.selectVictims(textures, 10)
	if len(victims) != 2 || victims[0] != 0 || victims[1] != 1 {
		t.Fatalf("evictor.selectVictims: have %v, want [0 1] (equal priority and last_used_frame break by ascending id)", victims)
	}
}

func TestEvictorReclaim(t *testing.T) {
	e := newEvictor(0)
	textures := []*texture{
		mkResident(0, PriorityLow, 0, 0),
		mkResident(1, PriorityNormal, 0, 1),
	}
	destroyed := map[int]bool{}
	destroy := func(id int) int64 {
		destroyed[id] = true
		return 4096
	}

	newTotal, evicted := e.reclaim(textures, 10, 8192, 8192, 4096, destroy)
	if newTotal != 4096 {
		t.Fatalf("evictor.reclaim: have newTotal %d, want 4096", newTotal)
	}
	if len(evicted) != 1 || evicted[0] != 0 {
		t.Fatalf("evictor.reclaim: have evicted %v, want [0] (only the Low-priority texture)", evicted)
	}
	if !destroyed[0] || destroyed[1] {
		t.Fatal("evictor.reclaim: destroy callback must only be invoked for the actual victim")
	}
}

func TestEvictorReclaimNoOpWhenUnlimited(t *testing.T) {
	e := newEvictor(0)
	called := false
	destroy := func(id int) int64 { called = true; return 0 }
	newTotal, evicted := e.reclaim(nil, 0, 1000, 0, 500, destroy)
	if newTotal != 1000 || evicted != nil || called {
		t.Fatal("evictor.reclaim: budget<=0 must mean unlimited, a pure no-op")
	}
}

func TestEvictorReclaimExhaustedCandidateList(t *testing.T) {
	e := newEvictor(0)
	textures := []*texture{mkResident(0, PriorityKeepResident, 0, 0)}
	destroy := func(id int) int64 { return 4096 }
	// Required exceeds budget and the only resident texture is pinned;
	// reclaim must still return, proposing no victims (spec §4.7's
	// "the batch proceeds anyway" fallback).
	newTotal, evicted := e.reclaim(textures, 10, 8192, 8192, 8192, destroy)
	if newTotal != 8192 || len(evicted) != 0 {
		t.Fatalf("evictor.reclaim: have (%d,%v), want (8192,[]) when the candidate list is exhausted", newTotal, evicted)
	}
}
