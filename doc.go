// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package runtimefx renders user-supplied fragment shaders as draw
// commands on a GPU render pass.
//
// A caller hands a [RuntimeEffect] a compiled shader program (SPIR-V
// bytecode plus uniform metadata), raw uniform bytes, and texture
// inputs. Render then compiles the program on first use, fetches or
// builds the matching render pipeline, binds the per-draw resources,
// and appends exactly one draw command to the pass, plus a stencil
// clip-restore draw when the geometry requests overdraw prevention.
//
// Compilation, pipeline, and sampler state are shared through a
// [RenderContext], which owns the shader library and the pipeline and
// sampler caches for one device.
//
// Basic usage:
//
//	rc, err := runtimefx.NewRenderContext(device, queue)
//	if err != nil { ... }
//	defer rc.Destroy()
//
//	effect := runtimefx.NewRuntimeEffect(program)
//	effect.SetUniformData(uniforms)
//
//	entity := runtimefx.Entity{Transform: runtimefx.Identity()}
//	err = effect.Render(ctx, rc, entity, pass)
package runtimefx
