package shader

import (
	"fmt"
	"sync"
)

// Program is a caller-owned runtime shader: SPIR-V bytecode for one
// entrypoint plus the uniform metadata describing its inputs.
//
// Replacing the bytecode with [Program.SetCode] bumps the version
// counter. Compiled functions record the version they were built from,
// so a draw can detect staleness by comparison instead of a shared
// dirty flag.
//
// Thread Safety: all methods are safe for concurrent use.
type Program struct {
	entrypoint string
	stage      Stage

	mu       sync.RWMutex
	code     []uint32
	uniforms []Uniform
	version  uint64
	plan     *BindingPlan // cached; rebuilt lazily after SetCode
}

// NewProgram creates a fragment-stage runtime program. The code slice
// is SPIR-V words (see [SPIRVWords]); uniforms describe its declared
// inputs in binding order.
func NewProgram(entrypoint string, code []uint32, uniforms []Uniform) *Program {
	return &Program{
		entrypoint: entrypoint,
		stage:      StageFragment,
		code:       code,
		uniforms:   uniforms,
		version:    1,
	}
}

// Entrypoint returns the program's entrypoint name.
func (p *Program) Entrypoint() string { return p.entrypoint }

// Stage returns the program's shader stage.
func (p *Program) Stage() Stage { return p.stage }

// Version returns the current bytecode version. Starts at 1 and
// increases by one per SetCode call.
func (p *Program) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Code returns the current SPIR-V words. The slice must not be mutated.
func (p *Program) Code() []uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.code
}

// Uniforms returns the declared uniform list. Must not be mutated.
func (p *Program) Uniforms() []Uniform {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uniforms
}

// SetCode replaces the program's bytecode and uniform metadata and
// bumps the version. Functions compiled from earlier versions become
// stale; the next draw recompiles.
func (p *Program) SetCode(code []uint32, uniforms []Uniform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.code = code
	p.uniforms = uniforms
	p.version++
	p.plan = nil
}

// Plan returns the binding plan for the current uniform list, building
// it on first use per version. The error, if any, is recomputed on
// every call so callers can apply their skip-vs-abort policy per draw.
func (p *Program) Plan() (*BindingPlan, error) {
	p.mu.RLock()
	if plan := p.plan; plan != nil {
		p.mu.RUnlock()
		return plan, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.plan != nil {
		return p.plan, nil
	}
	plan, err := BuildPlan(p.uniforms)
	if err != nil {
		return nil, err
	}
	p.plan = plan
	return plan, nil
}

// SPIRVWords converts SPIR-V bytes (as produced by naga.Compile) into
// the little-endian 32-bit words shader modules consume.
func SPIRVWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}
