package stereo

import "go.viam.com/stereo/utils"

// Window is a square window centred on a pixel. Size must be positive and odd.
//
// A Window covers the offsets [-r, r] in both directions, where r is the
// radius (Size-1)/2. HalfOpen windows cover [-r, r-1] instead, one pixel short
// on the trailing edge of each axis; this matches output produced by older
// tooling that used exclusive upper loop bounds.
type Window struct {
	Size     int
	HalfOpen bool
}

// NewWindow returns a symmetric window of the given size.
func NewWindow(size int) Window {
	return Window{Size: size}
}

// Validate ensures the window size is positive and odd.
func (w Window) Validate() error {
	if w.Size <= 0 || !utils.IsOdd(w.Size) {
		return newInvalidParameterError("window size %d must be a positive odd number", w.Size)
	}
	return nil
}

// Radius is the width of the border band a window needs on each side.
func (w Window) Radius() int {
	return (w.Size - 1) / 2
}

// Offsets returns the inclusive range of offsets the window spans around its
// centre, on both axes.
func (w Window) Offsets() (lo, hi int) {
	r := w.Radius()
	if w.HalfOpen {
		return -r, r - 1
	}
	return -r, r
}

// Area is the number of samples the window covers.
func (w Window) Area() int {
	lo, hi := w.Offsets()
	side := hi - lo + 1
	return side * side
}
