package texcache

import (
	"sync/atomic"

	"github.com/gviegas/demandtex/driver"
)

// sourceKind tags which of the three ways a Texture's pixels can be
// produced is in effect. It is a closed three-case tag held on the
// metadata, not virtual dispatch (the one polymorphism point in this
// module is ImageReader itself).
type sourceKind int

const (
	sourcePath sourceKind = iota
	sourceReader
	sourceMemory
)

// texture is the per-id metadata entry. Workers observe an
// immutable snapshot of the fields they need (taken under the
// engine lock by the caller) and otherwise only touch the two
// lock-free atomics, resident and loading.
type texture struct {
	id int

	kind   sourceKind
	path   string
	reader ImageReader

	// Retained raw-pixel copy. Always populated for sourceMemory (so
	// eviction-then-reload never needs the caller to keep the
	// buffer alive); left nil otherwise, since pixels decoded from a
	// path or reader are never retained.
	memPixels   []byte
	memW, memH  int
	memChannels int

	desc TextureDescriptor

	width, height int
	numChannels   int
	numLevels     int
	memoryUsage   int64

	lastUsedFrame int64
	loadedFrame   int64

	resident atomic.Bool
	loading  atomic.Bool

	tex     driver.Texture2D
	sampler driver.Sampler

	lastError LoaderError
}

// state reports the coarse lifecycle state for diagnostics/tests.
type textureState int

const (
	stateAllocated textureState = iota
	stateLoading
	stateResident
)

func (t *texture) state() textureState {
	if t.loading.Load() {
		return stateLoading
	}
	if t.resident.Load() {
		return stateResident
	}
	return stateAllocated
}

// releaseGPU frees any GPU resources owned by this texture and
// clears residency. Must be called under the engine lock; it does
// not touch memPixels/desc/source fields so reload can proceed.
func (t *texture) releaseGPU() int64 {
	freed := t.memoryUsage
	if t.sampler != nil {
		t.sampler.Destroy()
		t.sampler = nil
	}
	if t.tex != nil {
		t.tex.Destroy()
		t.tex = nil
	}
	t.memoryUsage = 0
	t.resident.Store(false)
	return freed
}

// mipMemoryUsage computes Σ w_k·h_k·4 for levels levels of a base
// w x h RGBA8 image, halving each dimension per level (floor, clamped
// to 1), matching spec §4.6's memory-usage formula.
func mipMemoryUsage(w, h, levels int) int64 {
	var total int64
	cw, ch := w, h
	for i := 0; i < levels; i++ {
		total += int64(cw) * int64(ch) * 4
		if cw > 1 {
			cw /= 2
		}
		if ch > 1 {
			ch /= 2
		}
	}
	return total
}

// numLevelsFor applies the descriptor's mip policy to a base size.
func numLevelsFor(w, h int, desc *TextureDescriptor) int {
	if !desc.GenerateMipmaps {
		return 1
	}
	full := calculateNumMipLevels(w, h)
	if desc.MaxMipLevel > 0 && desc.MaxMipLevel < full {
		return desc.MaxMipLevel
	}
	return full
}
