package texcache

import "hash/fnv"

// textureRegistry owns id allocation and the dedup lookups described
// in spec §4.4: a reader-pointer map, and one hash map shared by
// content hashes and path hashes. Every method assumes the caller already
// holds the Engine's single lock (spec §4.8): ids, once allocated,
// are assigned in monotonically increasing order and never reused
// for the engine's lifetime, even after unload (invariant 3) — this
// is why the registry is a fresh monotonic allocator rather than an
// adaptation of a freelist-reusing id map.
type textureRegistry struct {
	textures []*texture
	nextID   int
	max      int

	byReader map[ImageReader]int
	byHash   map[uint64]int // content hash and hash(path) share this map, as in the original source
}

func newTextureRegistry(max int) *textureRegistry {
	return &textureRegistry{
		max:      max,
		byReader: make(map[ImageReader]int),
		byHash:   make(map[uint64]int),
	}
}

func (r *textureRegistry) len() int { return len(r.textures) }

func (r *textureRegistry) get(id int) *texture {
	if id < 0 || id >= len(r.textures) {
		return nil
	}
	return r.textures[id]
}

func pathHash(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

// lookupReader implements dedup rule 1: an external reader pointer
// that has already been registered maps to the same id.
func (r *textureRegistry) lookupReader(reader ImageReader) (int, bool) {
	id, ok := r.byReader[reader]
	return id, ok
}

// lookupHash implements dedup rule 2: a non-zero content hash that
// has already been registered maps to the same id. Hash 0 never
// matches (it means "unknown").
func (r *textureRegistry) lookupHash(hash uint64) (int, bool) {
	if hash == 0 {
		return 0, false
	}
	id, ok := r.byHash[hash]
	return id, ok
}

// lookupPath implements dedup rule 3: a filesystem path hashes into
// the same map content hashes use; a hash hit is verified against
// the stored path to guard against hash collisions, exactly as the
// original createTexture(filename, ...) re-checks the filename on a
// hash hit.
func (r *textureRegistry) lookupPath(path string) (int, bool) {
	h := pathHash(path)
	id, ok := r.byHash[h]
	if !ok {
		return 0, false
	}
	t := r.textures[id]
	if t.kind != sourcePath || t.path != path {
		return 0, false
	}
	return id, true
}

// allocate assigns the next id to t, registers it into whichever
// dedup maps apply, and stores it in the dense id->texture slice. It
// returns ErrMaxTexturesExceeded if the registry is full.
func (r *textureRegistry) allocate(t *texture) (int, error) {
	if r.nextID >= r.max {
		return 0, ErrMaxTexturesExceeded
	}
	id := r.nextID
	r.nextID++
	t.id = id
	r.textures = append(r.textures, t)

	switch t.kind {
	case sourceReader:
		r.byReader[t.reader] = id
	case sourcePath:
		r.byHash[pathHash(t.path)] = id
	}
	return id, nil
}

// registerHash inserts a non-zero content hash discovered after
// allocate (a reader's Hash() is only known once opened).
func (r *textureRegistry) registerHash(id int, hash uint64) {
	if hash == 0 {
		return
	}
	if _, exists := r.byHash[hash]; !exists {
		r.byHash[hash] = id
	}
}

func (r *textureRegistry) full() bool { return r.nextID >= r.max }
