package stereo

import (
	"image"
)

// A Source is a single channel grid of non-negative samples. Sample is
// addressed in the coordinate space given by Bounds.
type Source interface {
	Bounds() image.Rectangle
	Sample(x, y int) int
}

// GraySource adapts an 8-bit grayscale image to a Source.
type GraySource struct {
	*image.Gray
}

// NewGraySource wraps img.
func NewGraySource(img *image.Gray) GraySource {
	return GraySource{img}
}

// Sample returns the intensity at (x, y).
func (g GraySource) Sample(x, y int) int {
	return int(g.GrayAt(x, y).Y)
}

// plane is a Source copied into a row-major slice with its origin at (0, 0).
type plane struct {
	width, height int
	data          []int32
}

func planeOf(src Source) plane {
	switch s := src.(type) {
	case *RankImage:
		return s.plane
	case GraySource:
		return planeOfGray(s.Gray)
	}
	b := src.Bounds()
	p := plane{width: b.Dx(), height: b.Dy(), data: make([]int32, b.Dx()*b.Dy())}
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			p.data[y*p.width+x] = int32(src.Sample(b.Min.X+x, b.Min.Y+y))
		}
	}
	return p
}

func planeOfGray(img *image.Gray) plane {
	b := img.Bounds()
	p := plane{width: b.Dx(), height: b.Dy(), data: make([]int32, b.Dx()*b.Dy())}
	for y := 0; y < p.height; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.width; x++ {
			p.data[y*p.width+x] = int32(row[x])
		}
	}
	return p
}

func (p plane) at(x, y int) int32 {
	return p.data[y*p.width+x]
}

func (p plane) size() image.Point {
	return image.Point{p.width, p.height}
}
