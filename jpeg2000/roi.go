package jpeg2000

import "github.com/jp2lab/j2kcodec/jpeg2000/geometry"

// ROIParams defines a rectangular Region of Interest using image coordinates.
// Coordinates are zero-based, width/height are positive, and rectangle is [X0, X0+Width) × [Y0, Y0+Height).
type ROIParams struct {
	X0     int
	Y0     int
	Width  int
	Height int
	Shift  int // MaxShift bit-plane shift for ROI upscaling
}

// IsValid returns true if ROI rectangle and shift are valid.
func (r *ROIParams) IsValid(imgWidth, imgHeight int) bool {
	if r == nil {
		return false
	}
	if r.Width <= 0 || r.Height <= 0 || r.Shift <= 0 {
		return false
	}
	if r.X0 < 0 || r.Y0 < 0 {
		return false
	}
	if r.X0+r.Width > imgWidth || r.Y0+r.Height > imgHeight {
		return false
	}
	return true
}

// Intersects returns true if ROI rectangle intersects the given block rectangle.
// Block coordinates are [x0, x1) x [y0, y1).
func (r *ROIParams) Intersects(x0, y0, x1, y1 int) bool {
	if r == nil {
		return false
	}
	roi := geometry.NewRect(int64(r.X0), int64(r.Y0), int64(r.X0+r.Width), int64(r.Y0+r.Height))
	block := geometry.NewRect(int64(x0), int64(y0), int64(x1), int64(y1))
	return roi.Overlaps(block)
}
