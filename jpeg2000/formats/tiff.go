package formats

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"
)

// TIFFImage is a decoded TIFF: planar samples plus geometry, restricted to
// the 8-bit and 16-bit grayscale/RGB layouts the codec's component model
// can represent directly.
type TIFFImage struct {
	Width      int
	Height     int
	Components int
	BitDepth   int
	Planes     [][]int32
}

// ReadTIFF decodes a TIFF via golang.org/x/image/tiff and splits it into
// planar component samples.
func ReadTIFF(r io.Reader) (*TIFFImage, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("tiff: decode: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h

	switch px := img.(type) {
	case *image.Gray:
		plane := make([]int32, n)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane[y*w+x] = int32(px.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return &TIFFImage{Width: w, Height: h, Components: 1, BitDepth: 8, Planes: [][]int32{plane}}, nil
	case *image.Gray16:
		plane := make([]int32, n)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane[y*w+x] = int32(px.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return &TIFFImage{Width: w, Height: h, Components: 1, BitDepth: 16, Planes: [][]int32{plane}}, nil
	default:
		// Fall back to a generic RGBA read at 8 bits/component.
		r, g, bb := make([]int32, n), make([]int32, n), make([]int32, n)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rr, gg, bbv, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := y*w + x
				r[i] = int32(rr >> 8)
				g[i] = int32(gg >> 8)
				bb[i] = int32(bbv >> 8)
			}
		}
		return &TIFFImage{Width: w, Height: h, Components: 3, BitDepth: 8, Planes: [][]int32{r, g, bb}}, nil
	}
}

// WriteTIFF re-assembles planar samples into an image.Image and encodes it.
func WriteTIFF(w io.Writer, img *TIFFImage) error {
	var m image.Image
	switch {
	case img.Components == 1 && img.BitDepth <= 8:
		g := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
		for i, v := range img.Planes[0] {
			g.Pix[i] = clampByte(v)
		}
		m = g
	case img.Components == 1:
		g := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
		for i, v := range img.Planes[0] {
			g.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: clampUint16(v)})
		}
		m = g
	case img.Components == 3:
		rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
		for i := range img.Planes[0] {
			off := i * 4
			rgba.Pix[off] = clampByte(img.Planes[0][i])
			rgba.Pix[off+1] = clampByte(img.Planes[1][i])
			rgba.Pix[off+2] = clampByte(img.Planes[2][i])
			rgba.Pix[off+3] = 255
		}
		m = rgba
	default:
		return fmt.Errorf("tiff: unsupported component count %d", img.Components)
	}
	return tiff.Encode(w, m, nil)
}

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampUint16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
