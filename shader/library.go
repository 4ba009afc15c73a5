// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// ErrNotRegistered is returned when a function lookup finds nothing.
var ErrNotRegistered = errors.New("shader: function not registered")

// CompileError reports a failed shader module compilation.
type CompileError struct {
	Entrypoint string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: compile %q: %v", e.Entrypoint, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Function is a compiled shader stage held by the library. Version is
// the program version the module was built from.
type Function struct {
	Name    string
	Stage   Stage
	Module  hal.ShaderModule
	Version uint64
}

// CompileTask is the one-shot completion handle for an asynchronous
// registration. Multiple callers registering the same entrypoint share
// one task; distinct entrypoints compile concurrently.
type CompileTask struct {
	done chan struct{}
	fn   *Function
	err  error
}

// Wait blocks until compilation finishes or ctx is done. On success it
// returns the compiled function; a ctx error does not cancel the
// compile, which completes in the background and remains visible to
// later lookups.
func (t *CompileTask) Wait(ctx context.Context) (*Function, error) {
	select {
	case <-t.done:
		return t.fn, t.err
	case <-ctx.Done():
		return nil, fmt.Errorf("shader: waiting for compile: %w", ctx.Err())
	}
}

type functionKey struct {
	name  string
	stage Stage
}

// Library is the program registry: it maps (entrypoint, stage) to a
// compiled function and owns the shader modules it creates.
//
// Registration and unregistration are serialized per entrypoint by the
// library's lock; compilation itself runs on a worker goroutine.
//
// Thread Safety: all methods are safe for concurrent use.
type Library struct {
	device hal.Device

	mu        sync.Mutex
	functions map[functionKey]*Function
	pending   map[functionKey]*CompileTask
}

// NewLibrary creates an empty shader library for the device.
func NewLibrary(device hal.Device) *Library {
	return &Library{
		device:    device,
		functions: make(map[functionKey]*Function),
		pending:   make(map[functionKey]*CompileTask),
	}
}

// GetFunction looks up a compiled function by entrypoint and stage.
func (l *Library) GetFunction(name string, stage Stage) (*Function, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn, ok := l.functions[functionKey{name, stage}]
	return fn, ok
}

// RegisterFunction submits SPIR-V code for asynchronous compilation and
// returns the task to wait on. If a registration for the same
// entrypoint and stage is already in flight, its task is returned and
// no new compile starts. A completed function for the key stays
// visible until the new compile succeeds; on success it is replaced
// and its module destroyed.
func (l *Library) RegisterFunction(name string, stage Stage, code []uint32, version uint64) *CompileTask {
	key := functionKey{name, stage}

	l.mu.Lock()
	if t, ok := l.pending[key]; ok {
		l.mu.Unlock()
		return t
	}
	t := &CompileTask{done: make(chan struct{})}
	l.pending[key] = t
	l.mu.Unlock()

	go l.compile(key, t, code, version)
	return t
}

// compile builds the shader module and publishes the result.
func (l *Library) compile(key functionKey, t *CompileTask, code []uint32, version uint64) {
	module, err := l.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  key.name,
		Source: hal.ShaderSource{SPIRV: code},
	})

	var displaced hal.ShaderModule
	l.mu.Lock()
	delete(l.pending, key)
	if err != nil {
		t.err = &CompileError{Entrypoint: key.name, Err: err}
	} else {
		if old, ok := l.functions[key]; ok {
			displaced = old.Module
		}
		t.fn = &Function{Name: key.name, Stage: key.stage, Module: module, Version: version}
		l.functions[key] = t.fn
	}
	l.mu.Unlock()

	if displaced != nil {
		l.device.DestroyShaderModule(displaced)
	}

	if err != nil {
		slogger().Warn("shader compile failed",
			slog.String("entrypoint", key.name),
			slog.String("stage", key.stage.String()),
			slog.Any("error", err))
	} else {
		slogger().Debug("shader compiled",
			slog.String("entrypoint", key.name),
			slog.String("stage", key.stage.String()),
			slog.Uint64("version", version))
	}
	close(t.done)
}

// UnregisterFunction removes a function and destroys its module.
// Safe to call for a name that was never registered.
func (l *Library) UnregisterFunction(name string, stage Stage) {
	key := functionKey{name, stage}

	l.mu.Lock()
	fn, ok := l.functions[key]
	delete(l.functions, key)
	l.mu.Unlock()

	if ok && fn.Module != nil {
		l.device.DestroyShaderModule(fn.Module)
	}
}

// Len returns the number of registered functions.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.functions)
}

// Destroy unregisters every function and destroys their modules.
func (l *Library) Destroy() {
	l.mu.Lock()
	functions := l.functions
	l.functions = make(map[functionKey]*Function)
	l.mu.Unlock()

	for _, fn := range functions {
		if fn.Module != nil {
			l.device.DestroyShaderModule(fn.Module)
		}
	}
}
