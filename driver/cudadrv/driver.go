// Package cudadrv implements driver.Driver over the CUDA Driver API,
// loaded at runtime via purego — no cgo, no build-time CUDA toolkit
// dependency. It registers itself only if a usable libcuda.so and at
// least one device are found; on any other machine the registration
// step silently fails and driver/sw remains the only registered
// driver.
package cudadrv

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/gviegas/demandtex/driver"
)

// CUresult mirrors the CUDA Driver API's CUresult enum (subset).
type CUresult int32

const (
	cudaSuccess        CUresult = 0
	cudaErrOutOfMemory CUresult = 2
	cudaErrNoDevice    CUresult = 100
)

func (r CUresult) Error() string {
	if r == cudaSuccess {
		return "CUDA_SUCCESS"
	}
	return fmt.Sprintf("CUDA_ERROR(%d)", int32(r))
}

func check(r CUresult, op string) error {
	if r != cudaSuccess {
		return fmt.Errorf("cudadrv: %s: %s", op, r.Error())
	}
	return nil
}

var (
	cuInit               func(flags uint32) CUresult
	cuDeviceGet          func(device *int32, ordinal int32) CUresult
	cuDeviceGetCount     func(count *int32) CUresult
	cuCtxCreate          func(pctx *uintptr, flags uint32, dev int32) CUresult
	cuCtxSetCurrent      func(ctx uintptr) CUresult
	cuCtxDestroy         func(ctx uintptr) CUresult
	cuMemAlloc           func(dptr *uintptr, bytesize uint64) CUresult
	cuMemFree            func(dptr uintptr) CUresult
	cuMemAllocHost       func(pp *unsafe.Pointer, bytesize uint64) CUresult
	cuMemFreeHost        func(p unsafe.Pointer) CUresult
	cuMemcpyHtoDAsync    func(dstDevice uintptr, srcHost unsafe.Pointer, byteCount uint64, hStream uintptr) CUresult
	cuMemcpyDtoHAsync    func(dstHost unsafe.Pointer, srcDevice uintptr, byteCount uint64, hStream uintptr) CUresult
	cuStreamCreate       func(phStream *uintptr, flags uint32) CUresult
	cuStreamSynchronize  func(hStream uintptr) CUresult
	cuStreamWaitEvent    func(hStream uintptr, hEvent uintptr, flags uint32) CUresult
	cuStreamDestroy      func(hStream uintptr) CUresult
	cuEventCreate        func(phEvent *uintptr, flags uint32) CUresult
	cuEventRecord        func(hEvent uintptr, hStream uintptr) CUresult
	cuEventSynchronize   func(hEvent uintptr) CUresult
	cuEventQuery         func(hEvent uintptr) CUresult
	cuEventDestroy       func(hEvent uintptr) CUresult
)

const cuEventDisableTiming = 0x2

var (
	loadOnce sync.Once
	loadErr  error
)

func load() error {
	loadOnce.Do(func() {
		var lib uintptr
		lib, loadErr = purego.Dlopen("libcuda.so.1", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if loadErr != nil {
			lib, loadErr = purego.Dlopen("libcuda.so", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if loadErr != nil {
				loadErr = fmt.Errorf("cannot load libcuda.so: %w", loadErr)
				return
			}
		}
		purego.RegisterLibFunc(&cuInit, lib, "cuInit")
		purego.RegisterLibFunc(&cuDeviceGet, lib, "cuDeviceGet")
		purego.RegisterLibFunc(&cuDeviceGetCount, lib, "cuDeviceGetCount")
		purego.RegisterLibFunc(&cuCtxCreate, lib, "cuCtxCreate_v2")
		purego.RegisterLibFunc(&cuCtxSetCurrent, lib, "cuCtxSetCurrent")
		purego.RegisterLibFunc(&cuCtxDestroy, lib, "cuCtxDestroy_v2")
		purego.RegisterLibFunc(&cuMemAlloc, lib, "cuMemAlloc_v2")
		purego.RegisterLibFunc(&cuMemFree, lib, "cuMemFree_v2")
		purego.RegisterLibFunc(&cuMemAllocHost, lib, "cuMemAllocHost_v2")
		purego.RegisterLibFunc(&cuMemFreeHost, lib, "cuMemFreeHost")
		purego.RegisterLibFunc(&cuMemcpyHtoDAsync, lib, "cuMemcpyHtoDAsync_v2")
		purego.RegisterLibFunc(&cuMemcpyDtoHAsync, lib, "cuMemcpyDtoHAsync_v2")
		purego.RegisterLibFunc(&cuStreamCreate, lib, "cuStreamCreate")
		purego.RegisterLibFunc(&cuStreamSynchronize, lib, "cuStreamSynchronize")
		purego.RegisterLibFunc(&cuStreamWaitEvent, lib, "cuStreamWaitEvent")
		purego.RegisterLibFunc(&cuStreamDestroy, lib, "cuStreamDestroy_v2")
		purego.RegisterLibFunc(&cuEventCreate, lib, "cuEventCreate")
		purego.RegisterLibFunc(&cuEventRecord, lib, "cuEventRecord")
		purego.RegisterLibFunc(&cuEventSynchronize, lib, "cuEventSynchronize")
		purego.RegisterLibFunc(&cuEventQuery, lib, "cuEventQuery")
		purego.RegisterLibFunc(&cuEventDestroy, lib, "cuEventDestroy_v2")
	})
	return loadErr
}

func init() {
	if err := load(); err != nil {
		return
	}
	if r := cuInit(0); r != cudaSuccess {
		return
	}
	var n int32
	if r := cuDeviceGetCount(&n); r != cudaSuccess || n == 0 {
		return
	}
	driver.Register(&cudaDriver{})
}

type cudaDriver struct {
	mu   sync.Mutex
	gpu  *cudaGPU
	open bool
}

func (d *cudaDriver) Name() string { return "cuda" }

func (d *cudaDriver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return d.gpu, nil
	}
	var dev int32
	if err := check(cuDeviceGet(&dev, 0), "cuDeviceGet"); err != nil {
		return nil, err
	}
	var ctx uintptr
	if err := check(cuCtxCreate(&ctx, 0, dev), "cuCtxCreate"); err != nil {
		return nil, err
	}
	d.gpu = &cudaGPU{drv: d, ctx: ctx}
	d.open = true
	return d.gpu, nil
}

func (d *cudaDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	cuCtxDestroy(d.gpu.ctx)
	d.gpu = nil
	d.open = false
}
