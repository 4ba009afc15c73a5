package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Target owns the color and optional depth/stencil attachments a pass
// renders into. Use [NewTarget] for an offscreen target; a caller with
// its own swapchain views can fill the struct directly.
type Target struct {
	device hal.Device

	width  uint32
	height uint32

	colorTex  hal.Texture
	ColorView hal.TextureView

	stencilTex  hal.Texture
	StencilView hal.TextureView

	// ClearColor is the color attachment's clear value.
	ClearColor gputypes.Color
}

// NewTarget allocates an offscreen render target. A depth/stencil
// attachment is created only when stencilFormat is not
// TextureFormatUndefined; effects that prevent overdraw need one.
func NewTarget(device hal.Device, width, height uint32, colorFormat, stencilFormat gputypes.TextureFormat) (*Target, error) {
	t := &Target{device: device, width: width, height: height}

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}

	colorTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "effect_color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        colorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create color texture: %w", err)
	}
	t.colorTex = colorTex

	colorView, err := device.CreateTextureView(colorTex, &hal.TextureViewDescriptor{
		Label: "effect_color_view",
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("render: create color texture view: %w", err)
	}
	t.ColorView = colorView

	if stencilFormat != gputypes.TextureFormatUndefined {
		stencilTex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         "effect_depth_stencil",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        stencilFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("render: create depth/stencil texture: %w", err)
		}
		t.stencilTex = stencilTex

		stencilView, err := device.CreateTextureView(stencilTex, &hal.TextureViewDescriptor{
			Label: "effect_depth_stencil_view",
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("render: create depth/stencil texture view: %w", err)
		}
		t.StencilView = stencilView
	}

	return t, nil
}

// Width returns the target width in pixels.
func (t *Target) Width() uint32 { return t.width }

// Height returns the target height in pixels.
func (t *Target) Height() uint32 { return t.height }

// ColorTexture returns the color attachment texture, usable for
// readback after a pass submits.
func (t *Target) ColorTexture() hal.Texture { return t.colorTex }

// descriptor builds the render pass attachments. The color attachment
// clears to ClearColor; the stencil attachment, if present, clears to
// zero and is discarded at pass end since stencil data is transient
// within the pass.
func (t *Target) descriptor(label string) *hal.RenderPassDescriptor {
	desc := &hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       t.ColorView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: t.ClearColor,
			},
		},
	}
	if t.StencilView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              t.StencilView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	return desc
}

// Destroy releases the target's textures and views. Safe to call on a
// partially constructed target.
func (t *Target) Destroy() {
	if t.device == nil {
		return
	}
	if t.StencilView != nil {
		t.device.DestroyTextureView(t.StencilView)
		t.StencilView = nil
	}
	if t.stencilTex != nil {
		t.device.DestroyTexture(t.stencilTex)
		t.stencilTex = nil
	}
	if t.ColorView != nil {
		t.device.DestroyTextureView(t.ColorView)
		t.ColorView = nil
	}
	if t.colorTex != nil {
		t.device.DestroyTexture(t.colorTex)
		t.colorTex = nil
	}
}
