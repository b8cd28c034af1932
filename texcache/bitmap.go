package texcache

import "github.com/gviegas/demandtex/internal/bitvec"

// residencyBitmap is the host mirror of the device residency bitmap:
// one bit per texture id, set iff the texture is resident. It is
// backed directly by bitvec.V[uint32], which already has exactly the
// Set/Unset/IsSet/Grow/All operations this entity needs.
type residencyBitmap struct {
	bits bitvec.V[uint32]
}

// grow extends the bitmap so it can address ids up to n-1.
func (r *residencyBitmap) grow(n int) {
	for r.bits.Len() < n {
		r.bits.Grow(1)
	}
}

func (r *residencyBitmap) set(id int)        { r.bits.Set(id) }
func (r *residencyBitmap) unset(id int)      { r.bits.Unset(id) }
func (r *residencyBitmap) isSet(id int) bool { return r.bits.IsSet(id) }

// words returns the packed uint32 backing words, for flushing a
// dirty range to the device mirror.
func (r *residencyBitmap) words() []uint32 { return r.bits.Words() }

func (r *residencyBitmap) wordLen() int { return r.bits.Len() / 32 }
