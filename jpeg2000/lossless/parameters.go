// Package lossless provides a JPEG 2000 lossless encoding profile: a
// parameter builder over jpeg2000.EncodeParams defaulted for the 5/3
// reversible wavelet, plus a thin Encode/Decode pair for raw component data.
package lossless

import (
	"fmt"

	"github.com/jp2lab/j2kcodec/jpeg2000"
)

// Parameters holds the encoding knobs exposed by the lossless profile.
// It builds a jpeg2000.EncodeParams with Lossless always forced to true.
type Parameters struct {
	// NumLevels controls the number of wavelet decomposition levels (0-6).
	// More levels generally improve compression on larger images; small
	// images (<128x128) should use fewer levels.
	NumLevels int

	// AllowMCT enables the reversible color transform (RCT) for 3-component
	// images. Ignored for single-component data.
	AllowMCT bool

	// ProgressionOrder selects LRCP(0)/RLCP(1)/RPCL(2)/PCRL(3)/CPRL(4).
	ProgressionOrder uint8

	// NumLayers sets the number of quality layers. A final layer is always
	// lossless regardless of NumLayers.
	NumLayers int

	// TargetRatio optionally requests a soft target ratio for the
	// intermediate (non-final) layers; 0 disables rate control.
	TargetRatio float64

	// UsePCRDOpt enables PCRD-style layer allocation.
	UsePCRDOpt bool

	// AppendLosslessLayer appends a final rate=0 lossless layer after any
	// target-rate layers.
	AppendLosslessLayer bool

	// MCTBindings carries Part 2 multi-component transform bindings.
	MCTBindings []jpeg2000.MCTBindingParams
}

// NewParameters returns profile defaults: 5 decomposition levels, MCT on,
// LRCP progression, a single lossless layer.
func NewParameters() *Parameters {
	return &Parameters{
		NumLevels:        5,
		AllowMCT:         true,
		ProgressionOrder: 0,
		NumLayers:        1,
	}
}

// Validate clamps out-of-range fields to safe defaults.
func (p *Parameters) Validate() error {
	if p.NumLevels < 0 || p.NumLevels > 6 {
		p.NumLevels = 5
	}
	if p.NumLayers < 1 {
		p.NumLayers = 1
	}
	if p.ProgressionOrder > 4 {
		p.ProgressionOrder = 0
	}
	if p.TargetRatio < 0 {
		p.TargetRatio = 0
	}
	if p.AppendLosslessLayer && p.NumLayers < 2 && p.TargetRatio > 0 {
		p.NumLayers = 2
	}
	return nil
}

// WithNumLevels sets the decomposition level count and returns p for chaining.
func (p *Parameters) WithNumLevels(n int) *Parameters { p.NumLevels = n; return p }

// WithAllowMCT toggles RCT and returns p for chaining.
func (p *Parameters) WithAllowMCT(allow bool) *Parameters { p.AllowMCT = allow; return p }

// WithProgression sets the progression order and returns p for chaining.
func (p *Parameters) WithProgression(order uint8) *Parameters { p.ProgressionOrder = order; return p }

// WithNumLayers sets the quality layer count and returns p for chaining.
func (p *Parameters) WithNumLayers(n int) *Parameters { p.NumLayers = n; return p }

// EncodeParams builds a jpeg2000.EncodeParams for the given raw image shape.
func (p *Parameters) EncodeParams(width, height, components, bitDepth int, signed bool) (*jpeg2000.EncodeParams, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lossless parameters: %w", err)
	}
	ep := jpeg2000.DefaultEncodeParams(width, height, components, bitDepth, signed)
	ep.Lossless = true
	ep.NumLevels = p.NumLevels
	ep.ProgressionOrder = p.ProgressionOrder
	ep.NumLayers = p.NumLayers
	ep.TargetRatio = p.TargetRatio
	ep.UsePCRDOpt = p.UsePCRDOpt || p.TargetRatio > 0
	ep.EnableMCT = p.AllowMCT
	ep.AppendLosslessLayer = p.AppendLosslessLayer
	ep.MCTBindings = p.MCTBindings
	return ep, nil
}
