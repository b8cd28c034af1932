package texcache

import "github.com/gviegas/demandtex/driver"

// DeviceContext is the stable seven-field layout device code samples
// through. Pointer stability is guaranteed for the Engine's lifetime
// once DeviceContext has been called; the caller may capture the
// returned value once and reuse it every frame.
type DeviceContext struct {
	ResidencyFlags  driver.DeviceBuffer // one bit per id, packed into 32-bit words
	HandleTable     driver.DeviceBuffer // uint64 per id, 0 = not resident
	RequestIDs      driver.DeviceBuffer // uint32[MaxRequests]
	RequestCount    driver.DeviceBuffer // single uint32, atomic fetch-add target
	RequestOverflow driver.DeviceBuffer // single uint32, atomic exchange target
	MaxTextures     int
	MaxRequests     int
}
