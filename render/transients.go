package render

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultUniformAlignment is the minimum offset alignment for uniform
// buffer bindings (WebGPU minUniformBufferOffsetAlignment).
const DefaultUniformAlignment = 256

// BufferView is a bound region of a GPU buffer: either a slice of a
// pass's transient arena or a window into a caller-owned buffer.
type BufferView struct {
	transient *TransientBuffer
	buffer    hal.Buffer

	Offset uint64
	Size   uint64
}

// NewBufferView wraps a caller-owned buffer region.
func NewBufferView(buf hal.Buffer, offset, size uint64) BufferView {
	return BufferView{buffer: buf, Offset: offset, Size: size}
}

// Raw returns the underlying buffer. For transient views this is valid
// only after the owning arena has been flushed.
func (v BufferView) Raw() hal.Buffer {
	if v.transient != nil {
		return v.transient.buf
	}
	return v.buffer
}

// Valid reports whether the view references any buffer region.
func (v BufferView) Valid() bool {
	return v.transient != nil || v.buffer != nil
}

// TransientBuffer is a per-pass scratch arena for short-lived uniform
// and vertex data. Draws emplace their data into CPU staging memory;
// Flush uploads the whole arena in one write before encoding. Offsets
// handed out are never valid across a Reset.
//
// Not safe for concurrent use: command construction is single-producer
// per pass.
type TransientBuffer struct {
	device hal.Device
	queue  hal.Queue
	label  string

	staging  []byte
	buf      hal.Buffer
	capacity uint64
}

// NewTransientBuffer creates an empty arena for the device.
func NewTransientBuffer(device hal.Device, queue hal.Queue, label string) *TransientBuffer {
	return &TransientBuffer{
		device: device,
		queue:  queue,
		label:  label,
	}
}

// Emplace copies data into the arena at the next offset aligned to
// alignment and returns a view of the region. Zero alignment means
// [DefaultUniformAlignment].
func (t *TransientBuffer) Emplace(data []byte, alignment uint64) BufferView {
	if alignment == 0 {
		alignment = DefaultUniformAlignment
	}
	offset := (uint64(len(t.staging)) + alignment - 1) &^ (alignment - 1)
	if pad := offset - uint64(len(t.staging)); pad > 0 {
		t.staging = append(t.staging, make([]byte, pad)...)
	}
	t.staging = append(t.staging, data...)
	return BufferView{transient: t, Offset: offset, Size: uint64(len(data))}
}

// EmplaceFloats emplaces a float32 slice as little-endian bytes.
func (t *TransientBuffer) EmplaceFloats(vals []float32, alignment uint64) BufferView {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return t.Emplace(data, alignment)
}

// Len returns the number of staged bytes, padding included.
func (t *TransientBuffer) Len() int { return len(t.staging) }

// Flush uploads the staged bytes to the GPU, growing the underlying
// buffer when the arena outgrew it. Views emplaced before Flush resolve
// to the uploaded buffer afterwards.
func (t *TransientBuffer) Flush() error {
	if len(t.staging) == 0 {
		return nil
	}
	size := uint64(len(t.staging))
	if t.buf == nil || t.capacity < size {
		if t.buf != nil {
			t.device.DestroyBuffer(t.buf)
			t.buf = nil
		}
		// Grow to the next power of two to amortize reallocation.
		capacity := uint64(256)
		for capacity < size {
			capacity *= 2
		}
		buf, err := t.device.CreateBuffer(&hal.BufferDescriptor{
			Label: t.label,
			Size:  capacity,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("render: create transient buffer: %w", err)
		}
		t.buf = buf
		t.capacity = capacity
	}
	t.queue.WriteBuffer(t.buf, 0, t.staging)
	return nil
}

// Reset discards the staged data while keeping the GPU buffer for
// reuse. All previously emplaced views become invalid.
func (t *TransientBuffer) Reset() {
	t.staging = t.staging[:0]
}

// Destroy releases the GPU buffer. The arena must not be used after.
func (t *TransientBuffer) Destroy() {
	if t.buf != nil {
		t.device.DestroyBuffer(t.buf)
		t.buf = nil
		t.capacity = 0
	}
	t.staging = nil
}
