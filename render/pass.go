// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pass errors.
var (
	// ErrNilCommand is returned when appending a nil command.
	ErrNilCommand = errors.New("render: command is nil")

	// ErrNoPipeline is returned when a command has no pipeline.
	ErrNoPipeline = errors.New("render: command has no pipeline")

	// ErrNoVertices is returned when a command has no vertex buffer.
	ErrNoVertices = errors.New("render: command has no vertex buffer")

	// ErrPassSubmitted is returned when recording into a submitted pass.
	ErrPassSubmitted = errors.New("render: pass already submitted")
)

// submitTimeout bounds the fence wait after queue submission.
const submitTimeout = 5 * time.Second

// Pass accumulates draw commands against one render target and submits
// them in a single command buffer. Command construction is synchronous
// and single-producer; a failed draw appends nothing.
type Pass struct {
	device hal.Device
	queue  hal.Queue
	label  string

	target     *Target
	transients *TransientBuffer
	commands   []*Command
	submitted  bool
}

// NewPass creates a pass that renders into target.
func NewPass(device hal.Device, queue hal.Queue, target *Target, label string) *Pass {
	return &Pass{
		device:     device,
		queue:      queue,
		label:      label,
		target:     target,
		transients: NewTransientBuffer(device, queue, label+"_transients"),
	}
}

// TransientsBuffer returns the pass's scratch arena for uniform and
// vertex data. Its contents live until the pass is reset.
func (p *Pass) TransientsBuffer() *TransientBuffer { return p.transients }

// Width returns the render target width in pixels.
func (p *Pass) Width() uint32 { return p.target.Width() }

// Height returns the render target height in pixels.
func (p *Pass) Height() uint32 { return p.target.Height() }

// AddCommand validates and appends a draw command. On error the
// command list is unchanged.
func (p *Pass) AddCommand(cmd *Command) error {
	if p.submitted {
		return ErrPassSubmitted
	}
	if cmd == nil {
		return ErrNilCommand
	}
	if cmd.Pipeline == nil {
		return ErrNoPipeline
	}
	if !cmd.Vertices.Valid() || cmd.VertexCount == 0 {
		return ErrNoVertices
	}
	p.commands = append(p.commands, cmd)
	return nil
}

// Commands returns the recorded commands in submission order.
func (p *Pass) Commands() []*Command { return p.commands }

// Len returns the number of recorded commands.
func (p *Pass) Len() int { return len(p.commands) }

// Submit uploads the transient arena, encodes every recorded command
// into one render pass, submits the command buffer, and blocks until
// the GPU signals completion.
func (p *Pass) Submit() error {
	if p.submitted {
		return ErrPassSubmitted
	}
	p.submitted = true

	if err := p.transients.Flush(); err != nil {
		return err
	}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: p.label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("render: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.label); err != nil {
		return fmt.Errorf("render: begin encoding: %w", err)
	}

	// Bind groups live until the fence signals.
	bindGroups := make([]hal.BindGroup, 0, len(p.commands))
	defer func() {
		for _, bg := range bindGroups {
			p.device.DestroyBindGroup(bg)
		}
	}()

	rp := encoder.BeginRenderPass(p.target.descriptor(p.label))
	for _, cmd := range p.commands {
		bg, err := p.createBindGroup(cmd)
		if err != nil {
			rp.End()
			encoder.DiscardEncoding()
			return err
		}
		bindGroups = append(bindGroups, bg)

		rp.SetPipeline(cmd.Pipeline.Raw())
		rp.SetStencilReference(cmd.StencilReference)
		rp.SetBindGroup(0, bg, nil)
		rp.SetVertexBuffer(0, cmd.Vertices.Raw(), cmd.Vertices.Offset)
		rp.Draw(cmd.VertexCount, 1, 0, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("render: end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.device.CreateFence()
	if err != nil {
		return fmt.Errorf("render: create fence: %w", err)
	}
	defer p.device.DestroyFence(fence)

	if err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("render: submit: %w", err)
	}
	ok, err := p.device.Wait(fence, 1, submitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("render: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

// createBindGroup builds the group-0 bind group for one command from
// its buffer and image bindings.
func (p *Pass) createBindGroup(cmd *Command) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(cmd.Buffers)+2*len(cmd.Images))
	for _, b := range cmd.Buffers {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: b.Binding,
			Resource: gputypes.BufferBinding{
				Buffer: b.View.Raw().NativeHandle(),
				Offset: b.View.Offset,
				Size:   b.View.Size,
			},
		})
	}
	for _, img := range cmd.Images {
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding: img.TextureBinding,
				Resource: gputypes.TextureViewBinding{
					TextureView: img.Texture.NativeHandle(),
				},
			},
			gputypes.BindGroupEntry{
				Binding: img.SamplerBinding,
				Resource: gputypes.SamplerBinding{
					Sampler: img.Sampler.NativeHandle(),
				},
			},
		)
	}

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   cmd.Label + "_bind",
		Layout:  cmd.Pipeline.BindGroupLayout(),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create bind group for %q: %w", cmd.Label, err)
	}
	return bg, nil
}

// Reset clears the recorded commands and the transient arena so the
// pass can record a new frame into the same target.
func (p *Pass) Reset() {
	p.commands = p.commands[:0]
	p.transients.Reset()
	p.submitted = false
}

// Destroy releases the pass's transient buffer. The target is owned by
// the caller and is not destroyed.
func (p *Pass) Destroy() {
	p.transients.Destroy()
}
