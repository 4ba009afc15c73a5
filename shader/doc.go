// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader holds runtime shader programs and their compiled forms.
//
// A [Program] is caller-supplied SPIR-V bytecode plus uniform metadata,
// identified by entrypoint name and stage. The [Library] turns programs
// into GPU shader modules, compiling asynchronously and handing back a
// [CompileTask] the caller can wait on. Uniform metadata is resolved once
// per program version into a [BindingPlan] that maps each uniform to its
// buffer or texture slot, so per-draw binding never recounts positional
// cursors.
//
// Programs are versioned: replacing the bytecode bumps the version, which
// makes previously compiled functions (and any pipelines built against
// them) stale without a shared dirty flag.
package shader
