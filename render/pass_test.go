//go:build !nogpu

package render

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/runtimefx/pipeline"
	"github.com/gogpu/runtimefx/shader"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
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
	return openDev.Device, openDev.Queue, cleanup
}

// buildTestPipeline compiles a minimal effect pipeline on the device.
func buildTestPipeline(t *testing.T, device hal.Device) (*pipeline.Pipeline, func()) {
	t.Helper()
	lib := shader.NewLibrary(device)
	spirv := []uint32{0x07230203, 0x00010000, 0, 0, 0}

	vsTask := lib.RegisterFunction("vs_main", shader.StageVertex, spirv, 1)
	vs, err := vsTask.Wait(context.Background())
	if err != nil {
		t.Fatalf("compile vertex failed: %v", err)
	}
	fsTask := lib.RegisterFunction("fs_main", shader.StageFragment, spirv, 1)
	fs, err := fsTask.Wait(context.Background())
	if err != nil {
		t.Fatalf("compile fragment failed: %v", err)
	}

	cache, err := pipeline.NewCache(device)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	p, err := cache.GetOrCreate(&pipeline.Descriptor{
		Label:            "test_effect",
		VertexFunction:   vs,
		FragmentFunction: fs,
		VertexLayout: []gputypes.VertexBufferLayout{
			{
				ArrayStride: 8,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			},
		},
		BindingLayout: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
		ColorFormat:  gputypes.TextureFormatBGRA8Unorm,
		BlendEnabled: true,
		Topology:     gputypes.PrimitiveTopologyTriangleList,
		CullMode:     gputypes.CullModeNone,
	})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	return p, func() {
		cache.DestroyAll()
		lib.Destroy()
	}
}

func TestPassAddCommandValidation(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	target, err := NewTarget(device, 16, 16, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatUndefined)
	if err != nil {
		t.Fatalf("NewTarget failed: %v", err)
	}
	defer target.Destroy()

	pipe, done := buildTestPipeline(t, device)
	defer done()

	pass := NewPass(device, queue, target, "test_pass")
	defer pass.Destroy()

	verts := pass.TransientsBuffer().EmplaceFloats([]float32{0, 0, 1, 0, 0, 1}, 4)

	tests := []struct {
		name    string
		cmd     *Command
		wantErr error
	}{
		{"nil command", nil, ErrNilCommand},
		{"no pipeline", &Command{Vertices: verts, VertexCount: 3}, ErrNoPipeline},
		{"no vertices", &Command{Pipeline: pipe, VertexCount: 3}, ErrNoVertices},
		{"zero count", &Command{Pipeline: pipe, Vertices: verts}, ErrNoVertices},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := pass.AddCommand(tt.cmd); err != tt.wantErr {
				t.Errorf("AddCommand() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := pass.Len(); got != 0 {
		t.Errorf("Len() after rejected commands = %d, want 0", got)
	}

	if err := pass.AddCommand(&Command{
		Label:       "ok",
		Pipeline:    pipe,
		Vertices:    verts,
		VertexCount: 3,
	}); err != nil {
		t.Fatalf("AddCommand(valid) failed: %v", err)
	}
	if got := pass.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestPassSubmit(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	target, err := NewTarget(device, 16, 16, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatDepth24PlusStencil8)
	if err != nil {
		t.Fatalf("NewTarget failed: %v", err)
	}
	defer target.Destroy()

	pipe, done := buildTestPipeline(t, device)
	defer done()

	pass := NewPass(device, queue, target, "test_pass")
	defer pass.Destroy()

	tb := pass.TransientsBuffer()
	verts := tb.EmplaceFloats([]float32{0, 0, 1, 0, 0, 1}, 4)
	mvp := tb.EmplaceFloats(make([]float32, 16), 0)

	cmd := &Command{
		Label:       "effect_draw",
		Pipeline:    pipe,
		Vertices:    verts,
		VertexCount: 3,
		Buffers: []BufferBinding{
			{Name: "transform", Binding: 0, View: mvp},
		},
	}
	if err := pass.AddCommand(cmd); err != nil {
		t.Fatalf("AddCommand failed: %v", err)
	}

	if err := pass.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Recording into a submitted pass is rejected until Reset.
	if err := pass.AddCommand(cmd); err != ErrPassSubmitted {
		t.Errorf("AddCommand after Submit error = %v, want ErrPassSubmitted", err)
	}
	if err := pass.Submit(); err != ErrPassSubmitted {
		t.Errorf("second Submit error = %v, want ErrPassSubmitted", err)
	}

	pass.Reset()
	if got := pass.Len(); got != 0 {
		t.Errorf("Len() after Reset = %d, want 0", got)
	}
}

func TestPassSubmitEmpty(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	target, err := NewTarget(device, 8, 8, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatUndefined)
	if err != nil {
		t.Fatalf("NewTarget failed: %v", err)
	}
	defer target.Destroy()

	pass := NewPass(device, queue, target, "empty_pass")
	defer pass.Destroy()

	// A pass with zero commands still encodes a clear.
	if err := pass.Submit(); err != nil {
		t.Fatalf("Submit of empty pass failed: %v", err)
	}
}
