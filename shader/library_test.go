//go:build !nogpu

package shader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device for testing.
func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, cleanup
}

// minimalSPIRV is a syntactically plausible module header; the noop
// backend does not parse it.
var minimalSPIRV = []uint32{0x07230203, 0x00010000, 0, 0, 0}

func TestLibraryRegisterAndWait(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	lib := NewLibrary(device)
	defer lib.Destroy()

	task := lib.RegisterFunction("effect_main", StageFragment, minimalSPIRV, 1)
	fn, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if fn.Name != "effect_main" {
		t.Errorf("fn.Name = %q, want \"effect_main\"", fn.Name)
	}
	if fn.Stage != StageFragment {
		t.Errorf("fn.Stage = %v, want fragment", fn.Stage)
	}
	if fn.Version != 1 {
		t.Errorf("fn.Version = %d, want 1", fn.Version)
	}

	got, ok := lib.GetFunction("effect_main", StageFragment)
	if !ok {
		t.Fatal("GetFunction after register = not found")
	}
	if got != fn {
		t.Error("GetFunction returned a different function than Wait")
	}
}

func TestLibraryLookupMiss(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	lib := NewLibrary(device)
	defer lib.Destroy()

	if _, ok := lib.GetFunction("absent", StageFragment); ok {
		t.Error("GetFunction on empty library = found")
	}
	// Same name, different stage is a distinct key.
	task := lib.RegisterFunction("main", StageFragment, minimalSPIRV, 1)
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if _, ok := lib.GetFunction("main", StageVertex); ok {
		t.Error("fragment registration visible under vertex stage")
	}
}

func TestLibraryConcurrentRegistrations(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	lib := NewLibrary(device)
	defer lib.Destroy()

	// Distinct entrypoints compile concurrently; same entrypoint shares
	// one in-flight task.
	names := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, name := range names {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				task := lib.RegisterFunction(name, StageFragment, minimalSPIRV, 1)
				if _, err := task.Wait(context.Background()); err != nil {
					t.Errorf("Wait(%s) failed: %v", name, err)
				}
			}(name)
		}
	}
	wg.Wait()

	if got := lib.Len(); got != len(names) {
		t.Errorf("Len() = %d, want %d", got, len(names))
	}
}

func TestLibraryUnregister(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	lib := NewLibrary(device)
	defer lib.Destroy()

	task := lib.RegisterFunction("gone", StageFragment, minimalSPIRV, 1)
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	lib.UnregisterFunction("gone", StageFragment)
	if _, ok := lib.GetFunction("gone", StageFragment); ok {
		t.Error("GetFunction found unregistered function")
	}

	// Unregistering again is a no-op.
	lib.UnregisterFunction("gone", StageFragment)

	// The entrypoint is free for re-registration.
	task = lib.RegisterFunction("gone", StageFragment, minimalSPIRV, 2)
	fn, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("re-register Wait failed: %v", err)
	}
	if fn.Version != 2 {
		t.Errorf("re-registered fn.Version = %d, want 2", fn.Version)
	}
}

// moduleCountingDevice wraps a device and counts shader module
// destroys.
type moduleCountingDevice struct {
	hal.Device
	destroyed int
}

func (d *moduleCountingDevice) DestroyShaderModule(m hal.ShaderModule) {
	d.destroyed++
	d.Device.DestroyShaderModule(m)
}

func TestLibraryReplaceDestroysDisplacedModule(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()
	counting := &moduleCountingDevice{Device: device}

	lib := NewLibrary(counting)
	defer lib.Destroy()

	task := lib.RegisterFunction("swap", StageFragment, minimalSPIRV, 1)
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Re-registering without unregistering replaces the function and
	// releases the old module.
	task = lib.RegisterFunction("swap", StageFragment, minimalSPIRV, 2)
	fn, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("replacement Wait failed: %v", err)
	}
	if fn.Version != 2 {
		t.Errorf("fn.Version = %d, want 2", fn.Version)
	}
	if got := lib.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if counting.destroyed != 1 {
		t.Errorf("destroyed %d modules, want 1 (the displaced module)", counting.destroyed)
	}
}

func TestCompileTaskWaitContext(t *testing.T) {
	// A task that never completes must respect context cancellation.
	task := &CompileTask{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := task.Wait(ctx); err == nil {
		t.Error("Wait returned nil error on expired context")
	}
}
