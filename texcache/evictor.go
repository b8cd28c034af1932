package texcache

import "sort"

// evictor implements spec §4.7's priority-tiered LRU with an
// anti-thrash hold-down window, grounded on the original source's
// evictIfNeeded and on tokenvm's pager.go evictToMakeSpace (walk a
// score-sorted candidate list destroying victims until the running
// total clears the target, stopping early if the list runs dry).
type evictor struct {
	minResidentFrames int
}

func newEvictor(minResidentFrames int) *evictor {
	return &evictor{minResidentFrames: minResidentFrames}
}

type evictCandidate struct {
	id    int
	score int
	last  int64
}

// selectVictims returns, in eviction order, the ids of every resident
// texture eligible for destruction to bring current+required within
// budget. It excludes KeepResident textures and textures still inside
// their hold-down window (current_frame - loaded_frame <
// minResidentFrames). The caller is responsible for actually
// destroying each texture and re-checking the running total; this
// method only proposes an order, matching spec §4.7's "the batch
// proceeds anyway" fallback when the candidate list runs dry before
// the budget is met.
func (e *evictor) selectVictims(textures []*texture, currentFrame int64) []int {
	cands := make([]evictCandidate, 0, len(textures))
	for _, t := range textures {
		if t == nil || !t.resident.Load() || t.loading.Load() {
			continue
		}
		if t.desc.Priority == PriorityKeepResident {
			continue
		}
		if currentFrame-t.loadedFrame < int64(e.minResidentFrames) {
			continue
		}
		cands = append(cands, evictCandidate{
			id:    t.id,
			score: t.desc.Priority.score(),
			last:  t.lastUsedFrame,
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score < cands[j].score
		}
		if cands[i].last != cands[j].last {
			return cands[i].last < cands[j].last
		}
		// Equal priority and equal last_used_frame: break the tie by
		// id, the insertion order textures were allocated in, so the
		// eviction order stays deterministic (spec §8 S2).
		return cands[i].id < cands[j].id
	})

	ids := make([]int, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

// reclaim walks selectVictims' order, calling destroy on each id and
// accumulating the bytes it frees, until total+required ≤ budget or
// the candidate list is exhausted. total is the caller's running
// resident-memory total before eviction and required is the number of
// additional bytes about to be allocated; destroy must return the
// number of bytes freed and update the caller's bookkeeping.
func (e *evictor) reclaim(textures []*texture, currentFrame int64, total, budget, required int64, destroy func(id int) int64) (newTotal int64, evicted []int) {
	if budget <= 0 {
		return total, nil
	}
	for _, id := range e.selectVictims(textures, currentFrame) {
		if total+required <= budget {
			break
		}
		total -= destroy(id)
		evicted = append(evicted, id)
	}
	return total, evicted
}
