package texcache

import "time"

// PixelFormat identifies the encoding of pixels an ImageReader hands
// back from ReadMipLevel.
type PixelFormat int

const (
	FormatUInt8 PixelFormat = iota
	FormatUInt16
	FormatFloat16
	FormatFloat32
)

// Info describes an opened image source.
type Info struct {
	Width, Height  int
	Format         PixelFormat
	NumChannels    int
	NumMipLevels   int
	IsValid        bool
	IsTiled        bool
}

// ImageReader is the sole polymorphism point this module defines: an
// external collaborator that knows how to decode one image. The
// engine consumes readers by shared ownership (a single ImageReader
// may be referenced by more than one in-flight load attempt).
type ImageReader interface {
	// Open prepares the reader for reads and reports the image's
	// Info. Open may be called more than once; a reader that is
	// already open returns its cached Info.
	Open() (Info, error)

	// Close releases any resources Open acquired. Close on an
	// unopened or already-closed reader is a no-op.
	Close() error

	// IsOpen reports whether Open has succeeded and Close has not
	// since been called.
	IsOpen() bool

	// ReadMipLevel decodes the given mip level into dest, which must
	// be sized for expectedW*expectedH*4 bytes (RGBA8). Readers that
	// only produce a base level synthesize requests for level 0 and
	// fail for level > 0 (the Loader then synthesizes mips itself).
	ReadMipLevel(dest []byte, level, expectedW, expectedH int) error

	// ReadBaseColor reports a single representative RGBA color for
	// the image, used as a lightweight summary; ok is false if the
	// reader has none to offer.
	ReadBaseColor() (r, g, b, a float32, ok bool)

	// BytesRead is the cumulative number of bytes this reader has
	// decoded across all ReadMipLevel calls.
	BytesRead() int64

	// TotalReadTime is the cumulative wall-clock time this reader has
	// spent inside ReadMipLevel across all calls.
	TotalReadTime() time.Duration

	// Hash returns a content hash for deduplication. Zero means
	// "opaque — do not use for content dedup" (spec invariant 4
	// never matches on hash 0).
	Hash() uint64
}

// calculateNumMipLevels returns 1 + floor(log2(max(w,h))), the full
// mip chain length for a w x h base level.
func calculateNumMipLevels(w, h int) int {
	n := 1
	m := w
	if h > m {
		m = h
	}
	for m > 1 {
		m >>= 1
		n++
	}
	return n
}
