package texcache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gviegas/demandtex/driver"
)

// Handle is the synchronous result of a CreateTexture* call, per
// spec §6.
type Handle struct {
	ID       int
	Valid    bool
	Width    int
	Height   int
	Channels int
	Error    LoaderError
}

// Engine orchestrates every other component: launch_prepare, request
// harvest, dedup, eviction, load scheduling, async tickets and abort,
// grounded on the original source's DemandLoader and expressed with
// the teacher's single-mutex-plus-lock-free-atomics shape (driver.go's
// Driver registry and the atomic.Bool residency/loading flags on
// texture).
type Engine struct {
	gpu  driver.GPU
	opts Options

	mu          sync.Mutex
	reg         *textureRegistry
	residency   residencyBitmap
	handleTable []uint64

	residencyDirty dirtyRange
	handleDirty    dirtyRange

	totalMemory      int64
	currentFrame     int64
	lastRequestCount uint32
	lastOverflow     bool
	lastError        LoaderError
	evictionEnabled  bool
	maxTextureMemory int64

	ring   *requestRing
	evictr *evictor
	pool   *threadPool
	pinned *pinnedBufferPool
	events *eventPool
	ld     *loader

	uploadStream driver.Stream
	copyStream   driver.Stream

	residencyScratch driver.PinnedBuffer
	handleScratch    driver.PinnedBuffer
	zeroScratch      driver.PinnedBuffer

	devCtx DeviceContext

	aborted  atomic.Bool
	inFlight atomic.Int32
	drainMu  sync.Mutex
	drainC   *sync.Cond
}

// New constructs an Engine bound to gpu with the given Options.
func New(gpu driver.GPU, opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	workers := opts.MaxThreads
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0) / 2
		if workers < 1 {
			workers = 1
		}
		if workers > 16 {
			workers = 16
		}
	}

	e := &Engine{
		gpu:              gpu,
		opts:             opts,
		reg:              newTextureRegistry(opts.MaxTextures),
		handleTable:      make([]uint64, opts.MaxTextures),
		ring:             newRequestRing(opts.MaxRequestsPerLaunch),
		evictr:           newEvictor(opts.MinResidentFrames),
		pool:             newThreadPool(workers),
		pinned:           newPinnedBufferPool(gpu, 0),
		events:           newEventPool(gpu, 0),
		evictionEnabled:  opts.EnableEviction,
		maxTextureMemory: opts.MaxTextureMemory,
	}
	e.drainC = sync.NewCond(&e.drainMu)
	e.ld = newLoader(gpu, e.pinned, opts.ReaderFactory)
	e.residency.grow(opts.MaxTextures)

	var err error
	if e.uploadStream, err = gpu.NewStream(); err != nil {
		return nil, err
	}
	if e.copyStream, err = gpu.NewStream(); err != nil {
		return nil, err
	}

	wordBytes := e.residency.wordLen() * 4
	handleBytes := opts.MaxTextures * 8
	ringBytes := opts.MaxRequestsPerLaunch * 4

	if e.devCtx.ResidencyFlags, err = gpu.AllocDevice(wordBytes); err != nil {
		return nil, err
	}
	if e.devCtx.HandleTable, err = gpu.AllocDevice(handleBytes); err != nil {
		return nil, err
	}
	if e.devCtx.RequestIDs, err = gpu.AllocDevice(ringBytes); err != nil {
		return nil, err
	}
	if e.devCtx.RequestCount, err = gpu.AllocDevice(4); err != nil {
		return nil, err
	}
	if e.devCtx.RequestOverflow, err = gpu.AllocDevice(4); err != nil {
		return nil, err
	}
	e.devCtx.MaxTextures = opts.MaxTextures
	e.devCtx.MaxRequests = opts.MaxRequestsPerLaunch

	if e.residencyScratch, err = gpu.AllocPinned(max(wordBytes, 1)); err != nil {
		return nil, err
	}
	if e.handleScratch, err = gpu.AllocPinned(max(handleBytes, 1)); err != nil {
		return nil, err
	}
	if e.zeroScratch, err = gpu.AllocPinned(4); err != nil {
		return nil, err
	}

	return e, nil
}

// offsetBuf addresses a byte range inside a DeviceBuffer. It composes
// with the same Addr() contract every driver.DeviceDst/DeviceSrc
// already honors (a driver-private address token): both the sw and
// cudadrv backends treat Addr() as a base that ordinary pointer
// arithmetic can offset from.
type offsetBuf struct {
	base   driver.DeviceBuffer
	offset int
}

func (o offsetBuf) Addr() uintptr { return o.base.Addr() + uintptr(o.offset) }

// DeviceContext returns the stable device-visible layout. The pointer
// values it carries stay valid for the Engine's lifetime.
func (e *Engine) DeviceContext() DeviceContext {
	return e.devCtx
}

// CreateTexture registers a texture sourced from a filesystem path,
// probing dimensions synchronously via Options.ReaderFactory without
// decoding pixel data, per spec §4.4/§4.6 step 1.
func (e *Engine) CreateTexture(path string, desc TextureDescriptor) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted.Load() {
		return Handle{Error: ErrInvalidParameter}
	}
	if id, ok := e.reg.lookupPath(path); ok {
		return e.handleFor(id)
	}

	var reader ImageReader
	var info Info
	if e.opts.ReaderFactory != nil {
		r, err := e.opts.ReaderFactory(path)
		if err != nil {
			e.lastError = ErrFileNotFound
			return Handle{Error: ErrFileNotFound}
		}
		info, err = r.Open()
		if err != nil {
			e.lastError = ErrFileNotFound
			return Handle{Error: ErrFileNotFound}
		}
		reader = r
	}

	t := &texture{kind: sourcePath, path: path, reader: reader, desc: desc}
	if info.IsValid {
		t.width, t.height, t.numChannels = info.Width, info.Height, 4
	}
	return e.finishCreate(t)
}

// CreateTextureFromReader registers a texture sourced from an
// externally-owned ImageReader, deduplicating on pointer identity
// then on content hash.
func (e *Engine) CreateTextureFromReader(reader ImageReader, desc TextureDescriptor) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted.Load() {
		return Handle{Error: ErrInvalidParameter}
	}
	if id, ok := e.reg.lookupReader(reader); ok {
		return e.handleFor(id)
	}
	hash := reader.Hash()
	if id, ok := e.reg.lookupHash(hash); ok {
		e.reg.byReader[reader] = id
		return e.handleFor(id)
	}

	info, err := reader.Open()
	if err != nil {
		e.lastError = ErrImageLoadFailed
		return Handle{Error: ErrImageLoadFailed}
	}

	t := &texture{kind: sourceReader, reader: reader, desc: desc}
	if info.IsValid {
		t.width, t.height, t.numChannels = info.Width, info.Height, 4
	}
	h := e.finishCreate(t)
	if h.Valid {
		e.reg.registerHash(h.ID, hash)
	}
	return h
}

// CreateTextureFromMemory registers a texture over a caller-supplied
// pixel buffer, which is retained verbatim so the texture can reload
// after eviction without the caller keeping its own copy.
func (e *Engine) CreateTextureFromMemory(pixels []byte, w, h, channels int, desc TextureDescriptor) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted.Load() {
		return Handle{Error: ErrInvalidParameter}
	}
	if w <= 0 || h <= 0 || (channels != 1 && channels != 3 && channels != 4) {
		e.lastError = ErrInvalidParameter
		return Handle{Error: ErrInvalidParameter}
	}
	if len(pixels) < w*h*channels {
		e.lastError = ErrInvalidParameter
		return Handle{Error: ErrInvalidParameter}
	}

	retained := make([]byte, w*h*channels)
	copy(retained, pixels)

	t := &texture{
		kind:        sourceMemory,
		memPixels:   retained,
		memW:        w,
		memH:        h,
		memChannels: channels,
		desc:        desc,
		width:       w,
		height:      h,
		numChannels: 4,
	}
	return e.finishCreate(t)
}

func (e *Engine) finishCreate(t *texture) Handle {
	if e.reg.full() {
		e.lastError = ErrMaxTexturesExceeded
		return Handle{Error: ErrMaxTexturesExceeded}
	}
	id, err := e.reg.allocate(t)
	if err != nil {
		e.lastError = ErrMaxTexturesExceeded
		return Handle{Error: ErrMaxTexturesExceeded}
	}
	return Handle{ID: id, Valid: true, Width: t.width, Height: t.height, Channels: t.numChannels, Error: ErrSuccess}
}

func (e *Engine) handleFor(id int) Handle {
	t := e.reg.get(id)
	return Handle{ID: id, Valid: true, Width: t.width, Height: t.height, Channels: t.numChannels, Error: ErrSuccess}
}

// LaunchPrepare flushes dirty mirrored ranges to the device over
// stream, zeroes the request ring's count and overflow, clears the
// dirty tracker, and advances the frame counter. It never blocks on
// the GPU.
func (e *Engine) LaunchPrepare(stream driver.Stream) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted.Load() {
		return nil
	}

	if !e.residencyDirty.isEmpty() {
		lo, hi := e.residencyDirty.interval()
		words := e.residency.words()[lo:hi]
		size := len(words) * 4
		words32ToBytes(e.residencyScratch.Bytes()[:size], words)
		if err := stream.CopyHostToDevice(offsetBuf{e.devCtx.ResidencyFlags, lo * 4}, e.residencyScratch, size); err != nil {
			e.lastError = ErrGPU
			return err
		}
		Logger().Debug("flushed residency dirty range", "lo", lo, "hi", hi, "bytes", size)
		e.residencyDirty.clear()
	}

	if !e.handleDirty.isEmpty() {
		lo, hi := e.handleDirty.interval()
		entries := e.handleTable[lo:hi]
		size := len(entries) * 8
		handlesToBytes(e.handleScratch.Bytes()[:size], entries)
		if err := stream.CopyHostToDevice(offsetBuf{e.devCtx.HandleTable, lo * 8}, e.handleScratch, size); err != nil {
			e.lastError = ErrGPU
			return err
		}
		Logger().Debug("flushed handle table dirty range", "lo", lo, "hi", hi, "bytes", size)
		e.handleDirty.clear()
	}

	zero := e.zeroScratch.Bytes()[:4]
	for i := range zero {
		zero[i] = 0
	}
	if err := stream.CopyHostToDevice(e.devCtx.RequestCount, e.zeroScratch, 4); err != nil {
		e.lastError = ErrGPU
		return err
	}
	if err := stream.CopyHostToDevice(e.devCtx.RequestOverflow, e.zeroScratch, 4); err != nil {
		e.lastError = ErrGPU
		return err
	}

	e.ring.reset()
	e.currentFrame++
	return nil
}

func words32ToBytes(dst []byte, words []uint32) []byte {
	for i, w := range words {
		dst[i*4] = byte(w)
		dst[i*4+1] = byte(w >> 8)
		dst[i*4+2] = byte(w >> 16)
		dst[i*4+3] = byte(w >> 24)
	}
	return dst
}

func handlesToBytes(dst []byte, handles []uint64) {
	for i, h := range handles {
		for b := 0; b < 8; b++ {
			dst[i*8+b] = byte(h >> (8 * b))
		}
	}
}

// SimulateRequest stages ids through the host-side request-ring mirror
// and flushes them to the device ring buffers over stream, as if a
// kernel's texture-sampling intrinsic had appended them. There is no
// kernel code in this module (spec §1's collaborator boundary), so this
// is the software-harness entry point spec §8's scenarios drive ("a
// kernel that appends {0,1,2,3} to the ring"): it reuses requestRing's
// atomic-claim-then-write-or-overflow append so the same overflow
// semantics apply as the real device path would see.
func (e *Engine) SimulateRequest(stream driver.Stream, ids ...int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted.Load() {
		return nil
	}
	for _, id := range ids {
		e.ring.append(uint32(id))
	}
	snapIDs, count, overflow := e.ring.snapshot()

	idsBuf, err := e.pinned.acquire(e.devCtx.MaxRequests * 4)
	if err != nil {
		return err
	}
	defer idsBuf.Release()
	countBuf, err := e.pinned.acquire(4)
	if err != nil {
		return err
	}
	defer countBuf.Release()
	overflowBuf, err := e.pinned.acquire(4)
	if err != nil {
		return err
	}
	defer overflowBuf.Release()

	if len(snapIDs) > 0 {
		words32ToBytes(idsBuf.Bytes()[:len(snapIDs)*4], snapIDs)
	}
	words32ToBytes(countBuf.Bytes()[:4], []uint32{count})
	overflowWord := uint32(0)
	if overflow {
		overflowWord = 1
	}
	words32ToBytes(overflowBuf.Bytes()[:4], []uint32{overflowWord})

	if len(snapIDs) > 0 {
		if err := stream.CopyHostToDevice(e.devCtx.RequestIDs, idsBuf.buf, len(snapIDs)*4); err != nil {
			return err
		}
	}
	if err := stream.CopyHostToDevice(e.devCtx.RequestCount, countBuf.buf, 4); err != nil {
		return err
	}
	if err := stream.CopyHostToDevice(e.devCtx.RequestOverflow, overflowBuf.buf, 4); err != nil {
		return err
	}
	return nil
}

// ProcessRequests harvests the request ring, deduplicates, runs
// eviction, dispatches loads, and returns the number of successful
// loads, per spec §4.8's synchronous path.
func (e *Engine) ProcessRequests(stream driver.Stream, ctx DeviceContext) int {
	if e.aborted.Load() {
		return 0
	}

	ringHost, err := e.readback(stream, ctx)
	if err != nil {
		e.mu.Lock()
		e.lastError = ErrGPU
		e.mu.Unlock()
		return 0
	}

	ids := e.dedup(ringHost.ids)
	return e.serviceIDs(ids)
}

// ringReadback is the host-visible snapshot of one ProcessRequests
// harvest.
type ringReadback struct {
	ids      []uint32
	count    uint32
	overflow bool
}

func (e *Engine) readback(stream driver.Stream, ctx DeviceContext) (ringReadback, error) {
	countBuf, err := e.pinned.acquire(4)
	if err != nil {
		return ringReadback{}, err
	}
	defer countBuf.Release()
	overflowBuf, err := e.pinned.acquire(4)
	if err != nil {
		return ringReadback{}, err
	}
	defer overflowBuf.Release()
	idsBuf, err := e.pinned.acquire(ctx.MaxRequests * 4)
	if err != nil {
		return ringReadback{}, err
	}
	defer idsBuf.Release()

	if err := stream.CopyDeviceToHost(countBuf.buf, ctx.RequestCount, 4); err != nil {
		return ringReadback{}, err
	}
	if err := stream.CopyDeviceToHost(overflowBuf.buf, ctx.RequestOverflow, 4); err != nil {
		return ringReadback{}, err
	}
	if err := stream.CopyDeviceToHost(idsBuf.buf, ctx.RequestIDs, ctx.MaxRequests*4); err != nil {
		return ringReadback{}, err
	}
	if err := stream.Synchronize(); err != nil {
		return ringReadback{}, err
	}

	count := bytesToUint32(countBuf.Bytes())
	overflow := bytesToUint32(overflowBuf.Bytes()) != 0

	n := int(count)
	if n > ctx.MaxRequests {
		n = ctx.MaxRequests
	}
	ids := make([]uint32, n)
	raw := idsBuf.Bytes()
	for i := 0; i < n; i++ {
		ids[i] = bytesToUint32(raw[i*4 : i*4+4])
	}

	e.mu.Lock()
	e.lastRequestCount = count
	e.lastOverflow = overflow
	e.mu.Unlock()

	if overflow {
		Logger().Warn("request ring overflowed", "count", count, "capacity", ctx.MaxRequests)
	}

	return ringReadback{ids: ids, count: count, overflow: overflow}, nil
}

func bytesToUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// dedup removes duplicate and out-of-range ids and drops ids for
// textures that are already resident or already loading.
func (e *Engine) dedup(raw []uint32) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[int]struct{}, len(raw))
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		id := int(v)
		if id < 0 || id >= e.reg.len() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t := e.reg.get(id)
		if t.resident.Load() || t.loading.Load() {
			t.lastUsedFrame = e.currentFrame
			continue
		}
		// A fresh request for an Allocated texture is a retry: clear any
		// error latched by a prior failed attempt rather than letting it
		// stick forever.
		t.lastError = ErrSuccess
		out = append(out, id)
	}
	return out
}

// serviceIDs evicts budget for ids then dispatches loads to the
// thread pool, publishing each success under the engine lock.
func (e *Engine) serviceIDs(ids []int) int {
	if len(ids) == 0 {
		return 0
	}

	e.mu.Lock()
	var required int64
	claimed := make([]int, 0, len(ids))
	sizes := make([]int64, 0, len(ids))
	inputs := make([]loadInput, 0, len(ids))
	for _, id := range ids {
		t := e.reg.get(id)
		if !t.loading.CompareAndSwap(false, true) {
			continue
		}
		size := projectedMemoryUsage(t)
		required += size
		claimed = append(claimed, id)
		sizes = append(sizes, size)
		inputs = append(inputs, snapshotInput(t))
	}
	if e.evictionEnabled && e.maxTextureMemory > 0 {
		var evicted []int
		e.totalMemory, evicted = e.evictr.reclaim(e.reg.textures, e.currentFrame, e.totalMemory, e.maxTextureMemory, required, e.destroyLocked)
		if len(evicted) > 0 {
			Logger().Info("evicted textures to make room", "ids", evicted, "required", required, "totalMemory", e.totalMemory)
		}
	}

	// Eviction is a best-effort pass over the batch's aggregate
	// requirement (spec §4.7); it may still leave the budget short for
	// some of the batch. Walk the claimed order reserving remaining
	// budget and fail whichever don't fit with OutOfMemory, per §4.7's
	// "the batch proceeds anyway — loads may subsequently fail with
	// OutOfMemory" and §8 S4.
	var claimedIDs []int
	var dispatch []loadInput
	if e.maxTextureMemory > 0 {
		remaining := e.maxTextureMemory - e.totalMemory
		claimedIDs = make([]int, 0, len(claimed))
		dispatch = make([]loadInput, 0, len(claimed))
		for i, id := range claimed {
			if sizes[i] > remaining {
				t := e.reg.get(id)
				t.loading.Store(false)
				t.lastError = ErrOutOfMemory
				e.lastError = ErrOutOfMemory
				Logger().Warn("texture load failed", "id", id, "error", ErrOutOfMemory, "requiredBytes", sizes[i], "remainingBytes", remaining)
				continue
			}
			remaining -= sizes[i]
			claimedIDs = append(claimedIDs, id)
			dispatch = append(dispatch, inputs[i])
		}
	} else {
		claimedIDs = claimed
		dispatch = inputs
	}
	e.mu.Unlock()

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i, in := range dispatch {
		id := claimedIDs[i]
		in := in
		wg.Add(1)
		e.pool.submit(func() {
			defer wg.Done()
			e.loadOne(id, in, &successes)
		})
	}
	wg.Wait()
	return int(successes.Load())
}

// guessDim reports a texture's best-known base dimension prior to
// load, used only to size the mip chain for the eviction-budget
// estimate; in-memory textures already know theirs, path/reader ones
// were probed at create time.
func guessDim(t *texture) int {
	if t.width > t.height {
		return t.width
	}
	return t.height
}

// projectedMemoryUsage estimates the memory a load will consume
// before decode, using the dimensions probed at create time.
func projectedMemoryUsage(t *texture) int64 {
	if t.width == 0 || t.height == 0 {
		return 0
	}
	levels := numLevelsFor(guessDim(t), guessDim(t), &t.desc)
	return mipMemoryUsage(t.width, t.height, levels)
}

func snapshotInput(t *texture) loadInput {
	return loadInput{
		kind:        t.kind,
		path:        t.path,
		reader:      t.reader,
		memPixels:   t.memPixels,
		memW:        t.memW,
		memH:        t.memH,
		memChannels: t.memChannels,
		desc:        t.desc,
	}
}

func (e *Engine) loadOne(id int, in loadInput, successes *atomic.Int32) {
	result, lerr, err := e.ld.load(in, e.uploadStream)

	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.reg.get(id)
	t.loading.Store(false)
	if err != nil {
		t.lastError = lerr
		e.lastError = lerr
		Logger().Warn("texture load failed", "id", id, "error", lerr)
		return
	}

	t.width, t.height = result.width, result.height
	t.numChannels = result.numChannels
	t.numLevels = result.numLevels
	t.memoryUsage = result.memoryUsage
	t.tex = result.tex
	t.sampler = result.sampler
	t.lastError = ErrSuccess
	t.loadedFrame = e.currentFrame
	t.lastUsedFrame = e.currentFrame
	t.resident.Store(true)

	if result.hash != 0 {
		e.reg.registerHash(id, result.hash)
	}

	e.handleTable[id] = result.sampler.Handle()
	e.handleDirty.mark(id)
	e.residency.set(id)
	e.residencyDirty.mark(id / 32)
	e.totalMemory += result.memoryUsage

	Logger().Debug("texture loaded", "id", id, "width", t.width, "height", t.height, "levels", t.numLevels, "bytes", result.memoryUsage)
	successes.Add(1)
}

// destroyLocked is the evictor's victim callback: it frees a
// texture's GPU resources, clears residency, and marks the mirrored
// ranges dirty. Must be called with the engine lock held.
func (e *Engine) destroyLocked(id int) int64 {
	t := e.reg.get(id)
	freed := t.releaseGPU()
	e.handleTable[id] = 0
	e.handleDirty.mark(id)
	e.residency.unset(id)
	e.residencyDirty.mark(id / 32)
	e.totalMemory -= freed
	return freed
}

// ProcessRequestsAsync mirrors ProcessRequests but returns immediately
// with a Ticket; the readback rides a dedicated copy stream and the
// dedup/eviction/load work runs on a background goroutine, per spec
// §4.8.
func (e *Engine) ProcessRequestsAsync(stream driver.Stream, ctx DeviceContext) *Ticket {
	if e.aborted.Load() {
		return newTicket(0)
	}

	e.inFlight.Add(1)
	ticket := newTicket(1)

	ev, err := e.events.acquire()
	if err != nil {
		e.inFlight.Add(-1)
		ticket.complete(err)
		return ticket
	}
	if err := ev.Record(stream); err != nil {
		e.events.release(ev)
		e.inFlight.Add(-1)
		ticket.complete(err)
		return ticket
	}

	go func() {
		defer e.events.release(ev)
		defer func() {
			e.inFlight.Add(-1)
			e.drainMu.Lock()
			e.drainC.Broadcast()
			e.drainMu.Unlock()
		}()

		if err := e.copyStream.Wait(ev); err != nil {
			ticket.complete(err)
			return
		}
		ringHost, err := e.readback(e.copyStream, ctx)
		if err != nil {
			ticket.complete(err)
			return
		}
		ids := e.dedup(ringHost.ids)
		e.serviceIDs(ids)
		ticket.complete(nil)
	}()

	return ticket
}

// UpdateEvictionPriority changes a texture's eviction tier.
func (e *Engine) UpdateEvictionPriority(id int, priority EvictionPriority) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.reg.get(id)
	if t == nil {
		return ErrInvalidTextureID
	}
	t.desc.Priority = priority
	return nil
}

// UnloadTexture releases a texture's GPU resources, retaining its
// metadata and reload source (spec's Resident->Allocated transition).
func (e *Engine) UnloadTexture(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.reg.get(id)
	if t == nil {
		return ErrInvalidTextureID
	}
	if t.resident.Load() {
		e.destroyLocked(id)
	}
	return nil
}

// UnloadAll releases every resident texture's GPU resources.
func (e *Engine) UnloadAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.reg.textures {
		if t.resident.Load() {
			e.destroyLocked(t.id)
		}
	}
}

func (e *Engine) SetMaxTextureMemory(bytes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxTextureMemory = bytes
}

func (e *Engine) GetMaxTextureMemory() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxTextureMemory
}

func (e *Engine) EnableEviction(enable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictionEnabled = enable
}

// Abort is a one-way transition to a drained, disabled state: it sets
// a sticky flag, waits for in-flight tickets to finish, tears down the
// pools, and unloads every texture.
func (e *Engine) Abort() {
	if !e.aborted.CompareAndSwap(false, true) {
		return
	}
	Logger().Info("engine aborting", "inFlight", e.inFlight.Load())

	e.drainMu.Lock()
	for e.inFlight.Load() > 0 {
		e.drainC.Wait()
	}
	e.drainMu.Unlock()

	e.pool.close()
	e.pinned.destroyAll()
	e.events.destroyAll()
	e.UnloadAll()

	e.mu.Lock()
	for _, t := range e.reg.textures {
		if t.kind == sourcePath && t.reader != nil {
			t.reader.Close()
		}
	}
	e.mu.Unlock()

	Logger().Info("engine aborted")
}

func (e *Engine) IsAborted() bool { return e.aborted.Load() }

func (e *Engine) ResidentTextureCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.reg.textures {
		if t.resident.Load() {
			n++
		}
	}
	return n
}

func (e *Engine) TotalTextureMemory() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalMemory
}

func (e *Engine) RequestCount() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRequestCount
}

func (e *Engine) HadRequestOverflow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastOverflow
}

// ReaderStats surfaces the decode-time statistics a texture's
// ImageReader tracks, for textures sourced from a path or an external
// reader. ok is false for a memory-sourced texture, an invalid id, or
// a texture that has not opened a reader yet.
func (e *Engine) ReaderStats(id int) (bytesRead int64, totalReadTime time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.reg.get(id)
	if t == nil || t.reader == nil {
		return 0, 0, false
	}
	return t.reader.BytesRead(), t.reader.TotalReadTime(), true
}

func (e *Engine) LastError() LoaderError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}
