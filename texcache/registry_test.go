package texcache

import (
	"testing"
	"time"
)

func TestTextureRegistryAllocate(t *testing.T) {
	r := newTextureRegistry(2)

	id0, err := r.allocate(&texture{kind: sourceMemory})
	if err != nil {
		t.Fatalf("textureRegistry.allocate: unexpected error:\n%#v", err)
	}
	if id0 != 0 {
		t.Fatalf("textureRegistry.allocate: have id %d, want 0", id0)
	}

	id1, err := r.allocate(&texture{kind: sourceMemory})
	if err != nil {
		t.Fatalf("textureRegistry.allocate: unexpected error:\n%#v", err)
	}
	if id1 != 1 {
		t.Fatalf("textureRegistry.allocate: have id %d, want 1", id1)
	}

	if !r.full() {
		t.Fatal("textureRegistry.full: expected true once MaxTextures is reached")
	}

	_, err = r.allocate(&texture{kind: sourceMemory})
	if err != ErrMaxTexturesExceeded {
		t.Fatalf("textureRegistry.allocate: have error %#v, want ErrMaxTexturesExceeded", err)
	}

	if r.get(0) == nil || r.get(1) == nil {
		t.Fatal("textureRegistry.get: ids 0 and 1 must resolve to their textures")
	}
	if r.get(2) != nil || r.get(-1) != nil {
		t.Fatal("textureRegistry.get: out-of-range ids must resolve to nil")
	}
}

func TestTextureRegistryDedup(t *testing.T) {
	r := newTextureRegistry(10)

	// Path dedup: same path hashes and round-trips to the same id.
	tp := &texture{kind: sourcePath, path: "a.png"}
	idp, _ := r.allocate(tp)
	if got, ok := r.lookupPath("a.png"); !ok || got != idp {
		t.Fatalf("textureRegistry.lookupPath: have (%d,%v), want (%d,true)", got, ok, idp)
	}
	if _, ok := r.lookupPath("b.png"); ok {
		t.Fatal("textureRegistry.lookupPath: unexpected hit for a different path")
	}

	// Reader dedup: same reader pointer round-trips to the same id.
	reader := &fakeReader{hash: 0xAA}
	tr := &texture{kind: sourceReader, reader: reader}
	idr, _ := r.allocate(tr)
	if got, ok := r.lookupReader(reader); !ok || got != idr {
		t.Fatalf("textureRegistry.lookupReader: have (%d,%v), want (%d,true)", got, ok, idr)
	}
	other := &fakeReader{hash: 0xAA}
	if _, ok := r.lookupReader(other); ok {
		t.Fatal("textureRegistry.lookupReader: unexpected hit for a distinct reader pointer")
	}

	// Hash dedup: registerHash lets a second reader with the same
	// content hash resolve to the first reader's id (spec §8 S6).
	r.registerHash(idr, 0xAA)
	if got, ok := r.lookupHash(0xAA); !ok || got != idr {
		t.Fatalf("textureRegistry.lookupHash: have (%d,%v), want (%d,true)", got, ok, idr)
	}
	if _, ok := r.lookupHash(0); ok {
		t.Fatal("textureRegistry.lookupHash: hash 0 must never match")
	}
}

// fakeReader is a minimal ImageReader stand-in for registry/engine tests
// that never exercises actual decode.
type fakeReader struct {
	hash      uint64
	opened    bool
	w, h      int
	fail      bool
	bytesRead int64
	readTime  time.Duration
}

func (f *fakeReader) Open() (Info, error) {
	if f.fail {
		return Info{}, newError("fakeReader: forced failure")
	}
	f.opened = true
	w, h := f.w, f.h
	if w == 0 {
		w = 32
	}
	if h == 0 {
		h = 32
	}
	return Info{Width: w, Height: h, Format: FormatUInt8, NumChannels: 4, IsValid: true}, nil
}

func (f *fakeReader) Close() error                { f.opened = false; return nil }
func (f *fakeReader) IsOpen() bool                 { return f.opened }
func (f *fakeReader) BytesRead() int64             { return f.bytesRead }
func (f *fakeReader) TotalReadTime() time.Duration { return f.readTime }
func (f *fakeReader) Hash() uint64                 { return f.hash }

func (f *fakeReader) ReadMipLevel(dest []byte, level, w, h int) error {
	for i := range dest {
		dest[i] = 0xFF
	}
	f.bytesRead += int64(len(dest))
	f.readTime += time.Microsecond
	return nil
}

func (f *fakeReader) ReadBaseColor() (r, g, b, a float32, ok bool) { return 0, 0, 0, 0, false }
