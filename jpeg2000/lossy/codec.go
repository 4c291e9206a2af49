package lossy

import (
	"fmt"

	"github.com/jp2lab/j2kcodec/jpeg2000"
)

// Encode compresses one frame of raw component-interleaved pixel data into a
// lossy JPEG 2000 codestream using the given quality/rate profile.
func Encode(frame []byte, width, height, components, bitDepth int, signed bool, params *Parameters) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("lossy: empty frame")
	}
	if params == nil {
		params = NewParameters()
	}
	encParams, err := params.EncodeParams(width, height, components, bitDepth, signed)
	if err != nil {
		return nil, err
	}
	encoder := jpeg2000.NewEncoder(encParams)
	encoded, err := encoder.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("jpeg2000 lossy encode failed: %w", err)
	}
	return encoded, nil
}

// Decode parses a JPEG 2000 codestream and returns the packed pixel bytes
// alongside the discovered image geometry.
func Decode(data []byte) (pixels []byte, width, height, components, bitDepth int, signed bool, err error) {
	dec := jpeg2000.NewDecoder()
	if err = dec.Decode(data); err != nil {
		return nil, 0, 0, 0, 0, false, fmt.Errorf("jpeg2000 lossy decode failed: %w", err)
	}
	pixels = dec.GetPixelData()
	return pixels, dec.Width(), dec.Height(), dec.Components(), dec.BitDepth(), dec.IsSigned(), nil
}
