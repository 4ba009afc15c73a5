// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend brings up a GPU device for effect rendering.
//
// Standalone callers use [Open] to create a device on the system's
// Vulkan backend. Applications that already own a device (for example
// a gogpu host) hand it over through [FromProvider] instead, so the
// effect renderer shares the host's GPU resources rather than creating
// a second device.
package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan backend with hal.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

var (
	// ErrNoBackend is returned when no GPU backend is available.
	ErrNoBackend = errors.New("backend: vulkan backend not available")

	// ErrNoAdapters is returned when the backend exposes no adapters.
	ErrNoAdapters = errors.New("backend: no GPU adapters found")

	// ErrNilProvider is returned by FromProvider for a nil provider.
	ErrNilProvider = errors.New("backend: nil device provider")
)

// Open creates a device on the Vulkan backend, preferring a discrete
// or integrated GPU over software adapters. The returned cleanup
// releases the device and instance; call it when rendering is done.
func Open() (hal.Device, hal.Queue, func(), error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, nil, ErrNoBackend
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("backend: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, ErrNoAdapters
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("backend: open device: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

// FromProvider extracts the HAL device and queue from a host
// application's device provider. The provider must additionally expose
// HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue, the convention gogpu hosts follow when sharing a device.
func FromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	if provider == nil {
		return nil, nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, fmt.Errorf("backend: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("backend: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("backend: provider HalQueue is not hal.Queue")
	}
	return device, queue, nil
}
