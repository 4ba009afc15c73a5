package runtimefx

// BlendMode selects how an effect's output composites with the color
// attachment.
type BlendMode int

const (
	// BlendSourceOver composites with premultiplied source-over
	// blending. This is the default.
	BlendSourceOver BlendMode = iota

	// BlendSource replaces the destination without blending.
	BlendSource
)

// String returns a human-readable blend mode name.
func (b BlendMode) String() string {
	switch b {
	case BlendSourceOver:
		return "source-over"
	case BlendSource:
		return "source"
	default:
		return "unknown"
	}
}

// blendEnabled reports whether the mode needs a blend state on the
// pipeline's color target.
func (b BlendMode) blendEnabled() bool {
	return b == BlendSourceOver
}

// Entity carries the per-draw render state an effect draws with: the
// local-to-pass transform, the compositing mode, and the stencil clip
// depth the draw is clipped against.
type Entity struct {
	Transform Matrix
	BlendMode BlendMode

	// ClipDepth is the stencil reference value for the draw. Draws
	// with overdraw prevention pass the stencil test only where the
	// buffer equals this value.
	ClipDepth uint32
}
