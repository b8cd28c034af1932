package texcache

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gviegas/demandtex/driver"
)

// loader implements spec §4.6: decode, allocate, upload the base
// level, synthesize and upload remaining mip levels, create the
// sampler. It is grounded on the original source's loadTextureTile
// pipeline and uses golang.org/x/image/draw.BiLinear.Scale (the
// resampling dependency the rest of the retrieved corpus already
// carries) to halve each level into the next. BiLinear is a tent
// filter whose support widens when shrinking, so each output texel
// weighs a 4x4 source neighbourhood; it is not a 2x2 box filter.
type loader struct {
	gpu           driver.GPU
	pinned        *pinnedBufferPool
	readerFactory func(path string) (ImageReader, error)
}

func newLoader(gpu driver.GPU, pinned *pinnedBufferPool, readerFactory func(path string) (ImageReader, error)) *loader {
	return &loader{gpu: gpu, pinned: pinned, readerFactory: readerFactory}
}

// loadResult carries the artifacts a successful load produces. Engine
// publishes these fields onto the texture record under its lock.
type loadResult struct {
	width, height int
	numChannels   int
	numLevels     int
	memoryUsage   int64
	tex           driver.Texture2D
	sampler       driver.Sampler
	hash          uint64
}

// loadInput is an immutable snapshot of the fields load needs, taken
// by Engine under its lock before releasing it for the decode/upload
// work (spec §4.8: the lock is never held across decode or upload).
type loadInput struct {
	kind   sourceKind
	path   string
	reader ImageReader

	memPixels   []byte
	memW, memH  int
	memChannels int

	desc TextureDescriptor
}

func (l *loader) load(in loadInput, stream driver.Stream) (loadResult, LoaderError, error) {
	pixels, w, h, channels, hash, lerr, err := l.decode(in)
	if err != nil {
		return loadResult{}, lerr, err
	}

	rgba := expandToRGBA(pixels, w, h, channels)
	numLevels := numLevelsFor(w, h, &in.desc)

	var tex driver.Texture2D
	if numLevels > 1 {
		tex, err = l.gpu.NewMipTexture2D(w, h, numLevels)
	} else {
		tex, err = l.gpu.NewTexture2D(w, h)
	}
	if err != nil {
		return loadResult{}, ErrGPU, err
	}

	var total int64
	var handles []*PinnedHandle
	level := rgba
	lw, lh := w, h
	for i := 0; i < numLevels; i++ {
		h, err := l.upload(tex, i, level, stream)
		if err != nil {
			releaseAll(handles)
			tex.Destroy()
			return loadResult{}, ErrGPU, err
		}
		handles = append(handles, h)
		total += int64(lw) * int64(lh) * 4
		if i+1 < numLevels {
			level, lw, lh = downsample(level, lw, lh)
		}
	}

	// The copies enqueued above are async; the pinned buffers backing
	// them must outlive them, so they are only released to the pool
	// once the stream has drained.
	syncErr := stream.Synchronize()
	releaseAll(handles)
	if syncErr != nil {
		tex.Destroy()
		return loadResult{}, ErrGPU, syncErr
	}

	sampler, err := l.gpu.NewSampler(driver.SamplerDesc{
		Texture:          tex,
		AddrU:            in.desc.AddrU,
		AddrV:            in.desc.AddrV,
		Filter:           in.desc.FilterMode,
		MipFilter:        in.desc.MipFilterMode,
		NormalizedCoords: in.desc.NormalizedCoords,
		SRGB:             in.desc.SRGB,
	})
	if err != nil {
		tex.Destroy()
		return loadResult{}, ErrGPU, err
	}

	return loadResult{
		width:       w,
		height:      h,
		numChannels: 4,
		numLevels:   numLevels,
		memoryUsage: total,
		tex:         tex,
		sampler:     sampler,
		hash:        hash,
	}, ErrSuccess, nil
}

// decode produces 4-channel-ready raw pixels for the base level plus
// the content hash (0 if the source carries none), per spec §4.6
// step 1.
func (l *loader) decode(in loadInput) (pixels []byte, w, h, channels int, hash uint64, lerr LoaderError, err error) {
	switch in.kind {
	case sourceMemory:
		return in.memPixels, in.memW, in.memH, in.memChannels, 0, ErrSuccess, nil

	case sourcePath:
		// Engine.CreateTexture already opened a reader via
		// ReaderFactory to probe dimensions synchronously; reuse it
		// instead of opening the path a second time.
		if in.reader != nil {
			return decodeReader(in.reader, false)
		}
		if l.readerFactory == nil {
			return nil, 0, 0, 0, 0, ErrFileNotFound, newError("no ReaderFactory configured for path-sourced texture")
		}
		r, ferr := l.readerFactory(in.path)
		if ferr != nil {
			return nil, 0, 0, 0, 0, ErrFileNotFound, ferr
		}
		return decodeReader(r, true)

	case sourceReader:
		return decodeReader(in.reader, false)

	default:
		return nil, 0, 0, 0, 0, ErrInvalidParameter, newError("unknown source kind")
	}
}

func decodeReader(r ImageReader, ownsClose bool) (pixels []byte, w, h, channels int, hash uint64, lerr LoaderError, err error) {
	wasOpen := r.IsOpen()
	info, oerr := r.Open()
	if oerr != nil {
		return nil, 0, 0, 0, 0, ErrFileNotFound, oerr
	}
	if ownsClose && !wasOpen {
		defer r.Close()
	}
	if !info.IsValid {
		return nil, 0, 0, 0, 0, ErrImageLoadFailed, newError("reader reported an invalid image")
	}
	if info.Format != FormatUInt8 {
		return nil, 0, 0, 0, 0, ErrImageLoadFailed, newError("reader must downconvert to 8-bit before upload")
	}

	// ReadMipLevel's contract always fills dest as RGBA8 regardless of
	// the source's original channel count; expansion from 1/3 channels
	// is the reader's responsibility, not the loader's.
	buf := make([]byte, info.Width*info.Height*4)
	if rerr := r.ReadMipLevel(buf, 0, info.Width, info.Height); rerr != nil {
		return nil, 0, 0, 0, 0, ErrImageLoadFailed, rerr
	}

	return buf, info.Width, info.Height, 4, r.Hash(), ErrSuccess, nil
}

// expandToRGBA promotes 1- or 3-channel 8-bit data to 4-channel RGBA
// (grayscale replicated across channels, alpha forced to 255); 4-
// channel input passes through unchanged.
func expandToRGBA(src []byte, w, h, channels int) []byte {
	if channels == 4 {
		return src
	}
	n := w * h
	dst := make([]byte, n*4)
	switch channels {
	case 1:
		for i := 0; i < n; i++ {
			v := src[i]
			dst[i*4], dst[i*4+1], dst[i*4+2], dst[i*4+3] = v, v, v, 255
		}
	case 3:
		for i := 0; i < n; i++ {
			dst[i*4] = src[i*3]
			dst[i*4+1] = src[i*3+1]
			dst[i*4+2] = src[i*3+2]
			dst[i*4+3] = 255
		}
	default:
		copy(dst, src)
	}
	return dst
}

// downsample halves w and h (floor, clamped to 1) using a bilinear
// (tent) scale. On an exact 2x reduction each output texel weighs a
// 4x4 source neighbourhood, not the 2x2 block a box filter would
// average.
func downsample(rgba []byte, w, h int) ([]byte, int, int) {
	nw, nh := w/2, h/2
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	src := &image.RGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst.Pix, nw, nh
}

func (l *loader) upload(tex driver.Texture2D, level int, rgba []byte, stream driver.Stream) (*PinnedHandle, error) {
	dst, err := tex.Level(level)
	if err != nil {
		return nil, err
	}
	size := len(rgba)
	handle, err := l.pinned.acquire(size)
	if err != nil {
		return nil, err
	}
	copy(handle.Bytes(), rgba)
	if err := stream.CopyHostToDevice(dst, handle.buf, size); err != nil {
		handle.Release()
		return nil, err
	}
	return handle, nil
}

func releaseAll(handles []*PinnedHandle) {
	for _, h := range handles {
		h.Release()
	}
}
