// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import "errors"

// GPU is the main interface to an underlying driver
// implementation. It exposes exactly the abstract surface a
// demand-loaded texture cache needs: stream-ordered host/device
// copies, events, pinned host memory, flat and mipmapped RGBA8
// arrays, and samplers. It intentionally has no notion of render
// passes, pipelines or draw calls.
type GPU interface {
	// Driver returns the Driver that created this GPU.
	Driver() Driver

	// NewStream creates a new command stream. Work submitted to a
	// stream executes in submission order; streams execute
	// concurrently with respect to one another.
	NewStream() (Stream, error)

	// NewEvent creates a stream-marker event, configured without
	// timing so record/synchronize are cheap.
	NewEvent() (Event, error)

	// NewTexture2D allocates a flat (non-mipmapped) 2D RGBA8 array.
	NewTexture2D(width, height int) (Texture2D, error)

	// NewMipTexture2D allocates a mipmapped 2D RGBA8 array with the
	// given number of levels. Level 0 is the base level.
	NewMipTexture2D(width, height, levels int) (Texture2D, error)

	// NewSampler creates a sampler handle from a descriptor.
	NewSampler(desc SamplerDesc) (Sampler, error)

	// AllocPinned allocates page-locked host memory of the given
	// size, suitable for use as the source/destination of an
	// asynchronous copy.
	AllocPinned(size int) (PinnedBuffer, error)

	// AllocDevice allocates a raw device buffer of the given size in
	// bytes, addressable as a copy source/destination. It backs the
	// device-visible mirrors (residency flags, handle table, request
	// ring) that are not themselves texture arrays.
	AllocDevice(size int) (DeviceBuffer, error)

	// Limits reports GPU-specific limits.
	Limits() Limits
}

// DeviceBuffer is a raw device allocation, usable as both a copy
// destination and a copy source.
type DeviceBuffer interface {
	DeviceDst
	DeviceSrc
	Destroyer
}

// Limits describes size limits of a GPU implementation.
type Limits struct {
	// MaxTextureSize is the maximum width/height of a 2D array.
	MaxTextureSize int
}

// Destroyer is implemented by resources that own driver state and
// must be explicitly released.
type Destroyer interface {
	Destroy()
}

// Stream is an ordered command queue. All copies enqueued on a
// given Stream execute in submission order; there is no ordering
// guarantee across distinct Streams other than what Events impose.
type Stream interface {
	// CopyHostToDevice enqueues an asynchronous copy from a pinned
	// host buffer into a device destination (a Texture2D level).
	CopyHostToDevice(dst DeviceDst, src PinnedBuffer, size int) error

	// CopyDeviceToHost enqueues an asynchronous copy from a device
	// source into a pinned host buffer.
	CopyDeviceToHost(dst PinnedBuffer, src DeviceSrc, size int) error

	// Wait makes all future work on this Stream wait until ev has
	// been recorded and completed.
	Wait(ev Event) error

	// Synchronize blocks the calling goroutine until all work
	// previously enqueued on this Stream has completed.
	Synchronize() error

	Destroyer
}

// DeviceDst is a copy destination reachable from a Stream. It is
// satisfied by a Texture2D mip level.
type DeviceDst interface {
	// Addr returns a driver-private address token identifying the
	// destination region. Its representation is meaningful only to
	// the driver implementation that produced it.
	Addr() uintptr
}

// DeviceSrc is a copy source reachable from a Stream.
type DeviceSrc interface {
	Addr() uintptr
}

// Event is a marker recorded on a Stream. It is signaled once every
// command enqueued on that Stream before the record call has
// completed.
type Event interface {
	// Record marks this event on s.
	Record(s Stream) error

	// Synchronize blocks the calling goroutine until this event has
	// been signaled.
	Synchronize() error

	// Query reports whether the event has been signaled, without
	// blocking.
	Query() (done bool, err error)

	Destroyer
}

// PinnedBuffer is page-locked host memory.
type PinnedBuffer interface {
	// Bytes returns the buffer's backing storage. It is valid until
	// Destroy is called.
	Bytes() []byte

	Destroyer
}

// Texture2D is a device-resident 2D RGBA8 array, optionally
// mipmapped.
type Texture2D interface {
	// Width and Height report level 0's dimensions.
	Width() int
	Height() int

	// Levels reports the number of mip levels (1 if flat).
	Levels() int

	// Level returns a copy destination/source addressing the given
	// mip level.
	Level(level int) (DeviceDst, error)

	Destroyer
}

// Sampler is a device sampler handle bound to a Texture2D.
type Sampler interface {
	// Handle returns the opaque 64-bit handle device code uses to
	// sample this texture, suitable for storage in a handle table.
	Handle() uint64

	Destroyer
}

// AddrMode selects the addressing mode applied outside [0,1].
type AddrMode int

const (
	AddrWrap AddrMode = iota
	AddrClamp
	AddrMirror
	AddrBorder
)

// FilterMode selects the filter applied when sampling.
type FilterMode int

const (
	FilterPoint FilterMode = iota
	FilterLinear
)

// SamplerDesc describes a sampler to be created over a Texture2D.
type SamplerDesc struct {
	Texture          Texture2D
	AddrU, AddrV     AddrMode
	Filter           FilterMode
	MipFilter        FilterMode
	NormalizedCoords bool
	SRGB             bool
}

// ErrUnsupported is returned by a driver operation that has no
// equivalent on the underlying implementation.
var ErrUnsupported = errors.New("driver: unsupported operation")
