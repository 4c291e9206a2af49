// Package htj2k provides a High-Throughput JPEG 2000 (ITU-T T.814 | ISO/IEC
// 15444-15) encoding profile: the same block geometry and rate controls as
// the lossless/lossy profiles, wired to the HTJ2K block coder instead of the
// EBCOT T1 coder.
package htj2k

import (
	"fmt"

	"github.com/jp2lab/j2kcodec/jpeg2000"
	"github.com/jp2lab/j2kcodec/jpeg2000/t2"
)

// Encode compresses one frame of raw component-interleaved pixel data into an
// HTJ2K codestream. When lossless is true the 5/3 wavelet is used and
// params.Quality is ignored; otherwise the 9/7 wavelet is used at the
// requested quality.
func Encode(frame []byte, width, height, components, bitDepth int, signed bool, params *HTJ2KParameters, lossless bool) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("htj2k: empty frame")
	}
	if params == nil {
		if lossless {
			params = NewHTJ2KLosslessParameters()
		} else {
			params = NewHTJ2KParameters()
		}
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid htj2k parameters: %w", err)
	}

	encParams := jpeg2000.DefaultEncodeParams(width, height, components, bitDepth, signed)

	maxLevels := calculateMaxLevels(width, height)
	if params.NumLevels > maxLevels {
		encParams.NumLevels = maxLevels
	} else {
		encParams.NumLevels = params.NumLevels
	}
	encParams.CodeBlockWidth = params.BlockWidth
	encParams.CodeBlockHeight = params.BlockHeight

	encParams.BlockEncoderFactory = func(w, h int) jpeg2000.BlockEncoder {
		return NewHTEncoder(w, h)
	}

	if lossless {
		encParams.Lossless = true
	} else {
		encParams.Lossless = false
		encParams.Quality = params.Quality
	}

	encoder := jpeg2000.NewEncoder(encParams)
	encoded, err := encoder.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("htj2k encode failed: %w", err)
	}
	return encoded, nil
}

// Decode parses an HTJ2K codestream and returns the packed pixel bytes
// alongside the discovered image geometry. The HTJ2K block decoder factory
// is substituted for the default EBCOT T1 decoder; the rest of the pipeline
// (T2, inverse DWT, MCT) is shared with the lossless/lossy profiles.
func Decode(data []byte) (pixels []byte, width, height, components, bitDepth int, signed bool, err error) {
	dec := jpeg2000.NewDecoder()
	dec.SetBlockDecoderFactory(func(w, h int, cblkstyle int) t2.BlockDecoder {
		return NewHTDecoder(w, h)
	})
	if err = dec.Decode(data); err != nil {
		return nil, 0, 0, 0, 0, false, fmt.Errorf("htj2k decode failed: %w", err)
	}
	pixels = dec.GetPixelData()
	return pixels, dec.Width(), dec.Height(), dec.Components(), dec.BitDepth(), dec.IsSigned(), nil
}

// calculateMaxLevels calculates the maximum number of wavelet decomposition
// levels that can be applied to an image of given dimensions. Each level
// halves dimensions; the result is the smallest L with 2^L >= min(width, height),
// i.e. ceil(log2(min(width, height))), capped at 6.
func calculateMaxLevels(width, height int) int {
	minDim := width
	if height < minDim {
		minDim = height
	}
	if minDim <= 0 {
		return 0
	}
	maxLevels := 0
	for (1 << maxLevels) < minDim {
		maxLevels++
	}
	if maxLevels > 6 {
		maxLevels = 6
	}
	return maxLevels
}
