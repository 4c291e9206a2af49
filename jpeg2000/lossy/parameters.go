// Package lossy provides a JPEG 2000 lossy encoding profile: a quality/rate
// oriented parameter builder over jpeg2000.EncodeParams, defaulted for the
// 9/7 irreversible wavelet.
package lossy

import (
	"fmt"

	"github.com/jp2lab/j2kcodec/jpeg2000"
)

var defaultRateLevels = []int{1280, 640, 320, 160, 80, 40, 20, 10, 5}

// Parameters holds the encoding knobs exposed by the lossy profile.
type Parameters struct {
	// Irreversible selects the 9/7 wavelet (true, default) vs. the 5/3
	// reversible wavelet used with lossy quantization (false).
	Irreversible bool

	// Rate is a quality-like setting (1-100, higher is better). Default 20.
	Rate int

	// RateLevels is the layer ladder consulted when Rate is used to derive
	// a layer count.
	RateLevels []int

	// AllowMCT enables the color transform (ICT for irreversible, RCT
	// otherwise) for 3-component input.
	AllowMCT bool

	// NumLevels is the wavelet decomposition depth (0-6). Default 5.
	NumLevels int

	// NumLayers is the quality layer count. Default 1.
	NumLayers int

	// TargetRatio requests a compression ratio (orig/compressed); overrides
	// a Rate-derived ratio when > 0.
	TargetRatio float64

	// QuantStepScale defaults to 1.0, and Validate resets non-positive values
	// to 1.0. EncodeParams does not pass it on, so it does not scale the
	// derived quantization steps.
	QuantStepScale float64

	// SubbandSteps supplies explicit per-subband quantization steps; length
	// must be 3*NumLevels+1 when set.
	SubbandSteps []float64

	// MCTBindings carries Part 2 multi-component transform bindings.
	MCTBindings []jpeg2000.MCTBindingParams
}

// NewParameters returns profile defaults: irreversible wavelet, rate 20,
// 5 decomposition levels, MCT on, single layer.
func NewParameters() *Parameters {
	levels := make([]int, len(defaultRateLevels))
	copy(levels, defaultRateLevels)
	return &Parameters{
		Irreversible:   true,
		Rate:           20,
		RateLevels:     levels,
		AllowMCT:       true,
		NumLevels:      5,
		NumLayers:      1,
		QuantStepScale: 1.0,
	}
}

// Validate clamps out-of-range fields to safe defaults.
func (p *Parameters) Validate() error {
	if p.Rate <= 0 {
		p.Rate = 20
	}
	if len(p.RateLevels) == 0 {
		p.RateLevels = append([]int(nil), defaultRateLevels...)
	}
	if p.NumLevels < 0 || p.NumLevels > 6 {
		p.NumLevels = 5
	}
	if p.NumLayers < 1 {
		p.NumLayers = 1
	}
	if p.QuantStepScale <= 0 {
		p.QuantStepScale = 1.0
	}
	return nil
}

// WithIrreversible sets wavelet mode and returns p for chaining.
func (p *Parameters) WithIrreversible(irreversible bool) *Parameters {
	p.Irreversible = irreversible
	return p
}

// WithRate sets the quality rate and returns p for chaining.
func (p *Parameters) WithRate(rate int) *Parameters { p.Rate = rate; return p }

// WithAllowMCT toggles the color transform and returns p for chaining.
func (p *Parameters) WithAllowMCT(allow bool) *Parameters { p.AllowMCT = allow; return p }

// WithNumLevels sets the decomposition depth and returns p for chaining.
func (p *Parameters) WithNumLevels(levels int) *Parameters { p.NumLevels = levels; return p }

// WithNumLayers sets the quality layer count and returns p for chaining.
func (p *Parameters) WithNumLayers(layers int) *Parameters { p.NumLayers = layers; return p }

// WithTargetRatio sets the desired compression ratio and returns p for chaining.
func (p *Parameters) WithTargetRatio(ratio float64) *Parameters { p.TargetRatio = ratio; return p }

// EncodeParams builds a jpeg2000.EncodeParams for the given raw image shape.
func (p *Parameters) EncodeParams(width, height, components, bitDepth int, signed bool) (*jpeg2000.EncodeParams, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lossy parameters: %w", err)
	}
	ep := jpeg2000.DefaultEncodeParams(width, height, components, bitDepth, signed)
	ep.Lossless = !p.Irreversible && p.TargetRatio <= 0 && p.Rate >= 100
	ep.NumLevels = p.NumLevels
	ep.NumLayers = p.NumLayers
	ep.Quality = p.Rate
	targetRatio := p.TargetRatio
	if targetRatio <= 0 && p.Rate > 0 {
		targetRatio = rateToTargetRatio(p.Rate, bitDepth, bitDepth)
	}
	ep.TargetRatio = targetRatio
	ep.UsePCRDOpt = targetRatio > 0
	ep.EnableMCT = p.AllowMCT
	ep.CustomQuantSteps = p.SubbandSteps
	ep.MCTBindings = p.MCTBindings
	if targetRatio > 0 && ep.NumLayers <= 1 {
		ep.NumLayers = layersFromRateLevels(p.Rate, p.RateLevels)
	}
	return ep, nil
}

func rateToTargetRatio(rate, bitsStored, bitsAllocated int) float64 {
	if rate <= 0 {
		return 0
	}
	if bitsAllocated <= 0 {
		bitsAllocated = bitsStored
	}
	if bitsStored <= 0 || bitsAllocated <= 0 {
		return float64(rate)
	}
	return float64(rate) * float64(bitsStored) / float64(bitsAllocated)
}

func layersFromRateLevels(rate int, levels []int) int {
	if rate <= 0 || len(levels) == 0 {
		return 1
	}
	layers := 1
	for _, v := range levels {
		if v > rate {
			layers++
		}
	}
	if layers < 1 {
		return 1
	}
	return layers
}
