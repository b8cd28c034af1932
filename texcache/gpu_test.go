package texcache

import (
	"testing"

	"github.com/gviegas/demandtex/driver"
	_ "github.com/gviegas/demandtex/driver/sw"
)

// newTestGPU opens the software driver, the way common_test.go selects
// "vulkan" in the teacher's driver package tests.
func newTestGPU(t *testing.T) driver.GPU {
	drivers := driver.Drivers()
	for i := range drivers {
		if drivers[i].Name() == "software" {
			gpu, err := drivers[i].Open()
			if err != nil {
				t.Fatalf("driver.Open: unexpected error:\n%#v", err)
			}
			return gpu
		}
	}
	t.Fatal("driver.Drivers: \"software\" driver not found")
	return nil
}
