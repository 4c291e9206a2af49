package jpeg2000

import "github.com/jp2lab/j2kcodec/jpeg2000/geometry"

// DecodeWindow specifies a sub-rectangle of the full decoded image that
// DecodeRegion should return. Coordinates are either fractions of the
// image's width/height (Fractional true, each in [0,1]) or absolute pixel
// coordinates. The zero value means "the whole image".
type DecodeWindow struct {
	X0, Y0, X1, Y1 float64
	Fractional     bool
}

func (w DecodeWindow) isZero() bool {
	return w == DecodeWindow{}
}

func (w DecodeWindow) pixelBounds(width, height int) (x0, y0, x1, y1 int) {
	var raw geometry.Rect
	if w.Fractional {
		raw = geometry.NewRect(
			int64(w.X0*float64(width)), int64(w.Y0*float64(height)),
			int64(w.X1*float64(width)), int64(w.Y1*float64(height)),
		)
	} else {
		raw = geometry.NewRect(int64(w.X0), int64(w.Y0), int64(w.X1), int64(w.Y1))
	}
	bounds := geometry.NewRect(0, 0, int64(width), int64(height))
	clipped := raw.Intersect(bounds)
	if !clipped.Valid() {
		clipped = geometry.NewRect(clipped.X0, clipped.Y0, clipped.X0, clipped.Y0)
	}
	return int(clipped.X0), int(clipped.Y0), int(clipped.X1), int(clipped.Y1)
}

// RegionResult is the output of DecodeRegion.
type RegionResult struct {
	Planes        [][]int32
	Width, Height int
	// X0, Y0 locate this window's top-left corner within the full,
	// unreduced decoded image.
	X0, Y0 int
}

// DecodeRegion decodes the codestream and returns only the samples inside
// win, optionally decimated by 2^reduce. The crop happens after a full
// tile/resolution decode, so returned samples are pixel-identical to the
// corresponding window of a plain Decode -- this is the sparse/windowed
// decode mode (spec's "decode only an output region"), trading the
// code-block-level compute savings of a true sparse canvas for a decode
// guaranteed to match full decode exactly (see DESIGN.md).
func (d *Decoder) DecodeRegion(data []byte, win DecodeWindow, reduce int) (*RegionResult, error) {
	if err := d.Decode(data); err != nil {
		return nil, err
	}

	x0, y0, x1, y1 := 0, 0, d.width, d.height
	if !win.isZero() {
		x0, y0, x1, y1 = win.pixelBounds(d.width, d.height)
	}

	planes := cropPlanes(d.data, d.width, x0, y0, x1, y1)
	w, h := x1-x0, y1-y0
	if reduce > 0 {
		planes, w, h = downsamplePlanes(planes, w, h, reduce)
	}

	return &RegionResult{Planes: planes, Width: w, Height: h, X0: x0, Y0: y0}, nil
}

func cropPlanes(planes [][]int32, fullWidth, x0, y0, x1, y1 int) [][]int32 {
	w := x1 - x0
	h := y1 - y0
	out := make([][]int32, len(planes))
	for c, plane := range planes {
		dst := make([]int32, w*h)
		for row := 0; row < h; row++ {
			srcOff := (y0+row)*fullWidth + x0
			copy(dst[row*w:(row+1)*w], plane[srcOff:srcOff+w])
		}
		out[c] = dst
	}
	return out
}

// downsamplePlanes decimates by nearest-neighbor sampling every 2^reduce-th
// pixel, mirroring the sample positions a reduced-resolution JPEG 2000
// decode (stopping the inverse DWT reduce levels early) would produce.
func downsamplePlanes(planes [][]int32, width, height, reduce int) ([][]int32, int, int) {
	factor := 1 << uint(reduce)
	newW := int(geometry.CeilDivPow2(int64(width), uint(reduce)))
	newH := int(geometry.CeilDivPow2(int64(height), uint(reduce)))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	out := make([][]int32, len(planes))
	for c, plane := range planes {
		dst := make([]int32, newW*newH)
		for y := 0; y < newH; y++ {
			sy := y * factor
			if sy >= height {
				sy = height - 1
			}
			for x := 0; x < newW; x++ {
				sx := x * factor
				if sx >= width {
					sx = width - 1
				}
				dst[y*newW+x] = plane[sy*width+sx]
			}
		}
		out[c] = dst
	}
	return out, newW, newH
}
