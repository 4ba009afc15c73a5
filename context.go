// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package runtimefx

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/pipeline"
	"github.com/gogpu/runtimefx/sampler"
	"github.com/gogpu/runtimefx/shader"
)

//go:embed shaders/effect.vert.wgsl
var effectVertexWGSL string

//go:embed shaders/restore.frag.wgsl
var restoreFragmentWGSL string

// Entrypoint names of the fixed shader stages, matching the embedded
// WGSL function names.
const (
	effectVertexEntrypoint    = "effect_vertex"
	restoreFragmentEntrypoint = "restore_fragment"
)

// ErrNilDevice is returned when creating a context without a device.
var ErrNilDevice = errors.New("runtimefx: device is nil")

// RenderContext owns the shared state effects render through on one
// device: the shader library, the pipeline and sampler caches, and the
// fixed vertex stage every effect pipeline uses.
//
// Thread Safety: the context's caches are safe for concurrent use;
// command construction against a single pass is single-producer.
type RenderContext struct {
	device hal.Device
	queue  hal.Queue

	Library   *shader.Library
	Pipelines *pipeline.Cache
	Samplers  *sampler.Cache

	// ColorFormat is the color attachment format effect pipelines
	// target. Defaults to BGRA8Unorm.
	ColorFormat gputypes.TextureFormat

	// StencilFormat is the depth/stencil attachment format used when
	// a draw needs overdraw prevention. Defaults to Depth24PlusStencil8.
	StencilFormat gputypes.TextureFormat

	vertexFn  *shader.Function
	restoreFn *shader.Function
}

// NewRenderContext creates a render context for the device, compiling
// the fixed vertex stage and the clip-restore fragment stage through
// naga.
func NewRenderContext(device hal.Device, queue hal.Queue) (*RenderContext, error) {
	if device == nil {
		return nil, ErrNilDevice
	}

	cache, err := pipeline.NewCache(device)
	if err != nil {
		return nil, err
	}
	rc := &RenderContext{
		device:        device,
		queue:         queue,
		Library:       shader.NewLibrary(device),
		Pipelines:     cache,
		Samplers:      sampler.NewCache(device),
		ColorFormat:   gputypes.TextureFormatBGRA8Unorm,
		StencilFormat: gputypes.TextureFormatDepth24PlusStencil8,
	}

	rc.vertexFn, err = rc.compileBuiltin(effectVertexEntrypoint, shader.StageVertex, effectVertexWGSL)
	if err != nil {
		rc.Destroy()
		return nil, err
	}
	rc.restoreFn, err = rc.compileBuiltin(restoreFragmentEntrypoint, shader.StageFragment, restoreFragmentWGSL)
	if err != nil {
		rc.Destroy()
		return nil, err
	}
	return rc, nil
}

// compileBuiltin compiles embedded WGSL and registers it with the
// library under the given entrypoint.
func (rc *RenderContext) compileBuiltin(name string, stage shader.Stage, wgsl string) (*shader.Function, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("runtimefx: compile %s: %w", name, err)
	}
	words, err := shader.SPIRVWords(spirvBytes)
	if err != nil {
		return nil, fmt.Errorf("runtimefx: %s: %w", name, err)
	}
	task := rc.Library.RegisterFunction(name, stage, words, 1)
	fn, err := task.Wait(context.Background())
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// Device returns the context's device.
func (rc *RenderContext) Device() hal.Device { return rc.device }

// Queue returns the context's queue.
func (rc *RenderContext) Queue() hal.Queue { return rc.queue }

// VertexFunction returns the fixed vertex stage shared by all effect
// pipelines.
func (rc *RenderContext) VertexFunction() *shader.Function { return rc.vertexFn }

// ensureCompiled resolves a program to its compiled function,
// recompiling when the program's bytecode changed since the last
// compile. Stale pipelines are purged before the old function is
// unregistered so no later draw can fetch one built against it.
func (rc *RenderContext) ensureCompiled(ctx context.Context, prog *shader.Program) (*shader.Function, error) {
	name, stage := prog.Entrypoint(), prog.Stage()
	version := prog.Version()

	fn, ok := rc.Library.GetFunction(name, stage)
	if ok && fn.Version == version {
		return fn, nil
	}
	if ok {
		// Purge before unregistering: the registry rejects duplicate
		// entrypoints, and a stale pipeline must not outlive its
		// function.
		rc.Pipelines.RemoveWithFragment(fn)
		rc.Library.UnregisterFunction(name, stage)
	}

	task := rc.Library.RegisterFunction(name, stage, prog.Code(), version)
	if _, err := task.Wait(ctx); err != nil {
		return nil, err
	}

	fn, ok = rc.Library.GetFunction(name, stage)
	if !ok {
		return nil, fmt.Errorf("runtimefx: %q vanished after compile: %w", name, shader.ErrNotRegistered)
	}
	return fn, nil
}

// Destroy releases the context's caches and library. Effects rendered
// through this context must not be used afterwards.
func (rc *RenderContext) Destroy() {
	if rc.Pipelines != nil {
		rc.Pipelines.DestroyAll()
	}
	if rc.Samplers != nil {
		rc.Samplers.Destroy()
	}
	if rc.Library != nil {
		rc.Library.Destroy()
	}
}
