package texcache

import "github.com/gviegas/demandtex/driver"

const (
	dflMaxTextures           = 4096
	dflMaxRequestsPerLaunch  = 1024
	dflMaxTextureMemory      = 2 * 1024 * 1024 * 1024 // 2 GiB
	dflMinResidentFrames     = 3
)

// Options configures an Engine at construction time. It follows the
// same shape as gviegas-neo3/engine.Config: every field documents its
// default, and DefaultOptions returns the populated zero state.
type Options struct {
	// MaxTextures is the maximum number of distinct texture ids the
	// engine will allocate over its lifetime.
	//
	// Default is 4096.
	MaxTextures int

	// MaxRequestsPerLaunch is the capacity of the device-side
	// request ring.
	//
	// Default is 1024.
	MaxRequestsPerLaunch int

	// MaxTextureMemory is the GPU memory budget, in bytes. Zero
	// means unlimited (eviction is disabled regardless of
	// EnableEviction).
	//
	// Default is 2 GiB.
	MaxTextureMemory int64

	// EnableEviction allows the evictor to free budget by unloading
	// resident textures. When false, loads that would exceed the
	// budget fail with ErrOutOfMemory instead.
	//
	// Default is true.
	EnableEviction bool

	// MaxThreads is the size of the loader worker pool. Zero selects
	// half of GOMAXPROCS, clamped to at least 1 and at most 16.
	//
	// Default is 0 (auto).
	MaxThreads int

	// MinResidentFrames is the anti-thrash hold-down window: a
	// texture loaded in frame F cannot be evicted before frame
	// F+MinResidentFrames.
	//
	// Default is 3.
	MinResidentFrames int

	// ReaderFactory opens an ImageReader for a filesystem path passed
	// to CreateTexture. The image decoder itself is out of scope (spec
	// §1's explicit collaborator boundary); this is the seam a caller
	// plugs a decoder into, mirroring the original source's
	// createImageSource(filename) factory function. A path-sourced
	// texture whose load is attempted with ReaderFactory unset fails
	// with ErrFileNotFound.
	//
	// Default is nil.
	ReaderFactory func(path string) (ImageReader, error)
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		MaxTextures:          dflMaxTextures,
		MaxRequestsPerLaunch: dflMaxRequestsPerLaunch,
		MaxTextureMemory:     dflMaxTextureMemory,
		EnableEviction:       true,
		MaxThreads:           0,
		MinResidentFrames:    dflMinResidentFrames,
	}
}

func (o *Options) validate() error {
	switch {
	case o.MaxTextures <= 0:
		return newError("Options.MaxTextures must be positive")
	case o.MaxRequestsPerLaunch < 0:
		return newError("Options.MaxRequestsPerLaunch must not be negative")
	case o.MaxTextureMemory < 0:
		return newError("Options.MaxTextureMemory must not be negative")
	case o.MaxThreads < 0:
		return newError("Options.MaxThreads must not be negative")
	case o.MinResidentFrames < 0:
		return newError("Options.MinResidentFrames must not be negative")
	}
	return nil
}

// EvictionPriority tiers a texture for the Evictor.
type EvictionPriority int

const (
	// PriorityLow textures are evicted before PriorityNormal.
	PriorityLow EvictionPriority = iota
	// PriorityNormal is the default tier.
	PriorityNormal
	// PriorityHigh textures are evicted only after every Low and
	// Normal candidate is exhausted.
	PriorityHigh
	// PriorityKeepResident textures are never selected by the
	// Evictor.
	PriorityKeepResident
)

func (p EvictionPriority) score() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}

// TextureDescriptor configures how a Texture is sampled and how it
// participates in eviction. It corresponds to the original source's
// TextureDesc.
type TextureDescriptor struct {
	// AddrU, AddrV are the addressing modes applied outside [0,1]
	// along each axis.
	//
	// Default is driver.AddrWrap for both.
	AddrU, AddrV driver.AddrMode

	// FilterMode is the magnification/minification filter.
	//
	// Default is driver.FilterLinear.
	FilterMode driver.FilterMode

	// MipFilterMode is the filter used between mip levels.
	//
	// Default is driver.FilterLinear.
	MipFilterMode driver.FilterMode

	// NormalizedCoords selects normalized-float texture coordinates.
	//
	// Default is true.
	NormalizedCoords bool

	// SRGB treats the uploaded data as sRGB-encoded.
	//
	// Default is false.
	SRGB bool

	// GenerateMipmaps synthesizes mip levels below the base level.
	// Per the most recent header revision this defaults to true,
	// not the unset/false seen in an older revision.
	//
	// Default is true.
	GenerateMipmaps bool

	// MaxMipLevel caps the number of mip levels. Zero means "all
	// levels" (1 + floor(log2(max(w,h)))).
	//
	// Default is 0.
	MaxMipLevel int

	// Priority is this texture's eviction tier.
	//
	// Default is PriorityNormal.
	Priority EvictionPriority
}

// DefaultTextureDescriptor returns a descriptor with every default
// applied, in particular GenerateMipmaps=true (spec's resolved Open
// Question).
func DefaultTextureDescriptor() TextureDescriptor {
	return TextureDescriptor{
		AddrU:            driver.AddrWrap,
		AddrV:            driver.AddrWrap,
		FilterMode:       driver.FilterLinear,
		MipFilterMode:    driver.FilterLinear,
		NormalizedCoords: true,
		GenerateMipmaps:  true,
		Priority:         PriorityNormal,
	}
}
