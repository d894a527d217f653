package stereo

import (
	"image"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/stereo/utils"
)

// DisparityMap holds one horizontal disparity per pixel of a stereo pair. Only
// pixels inside Valid were matched; the rest hold the fallback value chosen by
// the matcher.
type DisparityMap struct {
	width  int
	height int
	valid  image.Rectangle

	data []int
}

func newDisparityMap(width, height, fill int, valid image.Rectangle) *DisparityMap {
	dm := &DisparityMap{
		width:  width,
		height: height,
		valid:  valid,
		data:   make([]int, width*height),
	}
	if fill != 0 {
		for i := range dm.data {
			dm.data[i] = fill
		}
	}
	return dm
}

// NewDisparityMapFromGray reads a disparity per pixel out of img, dividing each
// intensity by scale and rounding half away from zero. Ground truth disparity
// images are commonly stored this way, multiplied by a known factor.
func NewDisparityMapFromGray(img *image.Gray, scale float64) *DisparityMap {
	if scale <= 0 {
		scale = 1
	}
	b := img.Bounds()
	dm := newDisparityMap(b.Dx(), b.Dy(), 0, image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			dm.data[y*dm.width+x] = int(math.Round(float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / scale))
		}
	}
	return dm
}

// Width returns the width of the map.
func (dm *DisparityMap) Width() int {
	return dm.width
}

// Height returns the height of the map.
func (dm *DisparityMap) Height() int {
	return dm.height
}

// Bounds returns the extent of the map.
func (dm *DisparityMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Valid returns the region where every pixel was matched.
func (dm *DisparityMap) Valid() image.Rectangle {
	return dm.valid
}

// In reports whether (x, y) lies inside the map.
func (dm *DisparityMap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDisparity returns the disparity at (x, y).
func (dm *DisparityMap) GetDisparity(x, y int) int {
	return dm.data[y*dm.width+x]
}

// Get returns the disparity at p.
func (dm *DisparityMap) Get(p image.Point) int {
	return dm.GetDisparity(p.X, p.Y)
}

// ToGray renders the map as an 8-bit image with every disparity multiplied by
// scale, clamped to [0,255]. Narrow disparity ranges are typically spread with
// a scale of 3 or 4.
func (dm *DisparityMap) ToGray(scale int) *image.Gray {
	out := image.NewGray(dm.Bounds())
	for i, d := range dm.data {
		out.Pix[i] = uint8(utils.ClampInt(d*scale, 0, 255))
	}
	return out
}

// DisparityStats summarizes the disparities inside the valid region.
type DisparityStats struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
}

// Stats summarizes the disparities inside Valid. When mask is non-nil only
// confident pixels are included.
func (dm *DisparityMap) Stats(mask *ConfidenceMask) (DisparityStats, error) {
	var data stats.Float64Data
	for y := dm.valid.Min.Y; y < dm.valid.Max.Y; y++ {
		for x := dm.valid.Min.X; x < dm.valid.Max.X; x++ {
			if mask != nil && !mask.Confident(x, y) {
				continue
			}
			data = append(data, float64(dm.GetDisparity(x, y)))
		}
	}
	if len(data) == 0 {
		return DisparityStats{}, errors.New("no disparities to summarize")
	}
	var (
		s   = DisparityStats{Count: len(data)}
		err error
	)
	if s.Mean, err = data.Mean(); err != nil {
		return DisparityStats{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return DisparityStats{}, err
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return DisparityStats{}, err
	}
	return s, nil
}

// ConfidenceMask marks which disparities passed the confidence gate. Pixels
// outside the mask are untrusted.
type ConfidenceMask struct {
	width  int
	height int

	data []bool
}

func newConfidenceMask(width, height int) *ConfidenceMask {
	return &ConfidenceMask{width: width, height: height, data: make([]bool, width*height)}
}

// NewConfidenceMaskFromGray trusts every nonzero pixel of img.
func NewConfidenceMaskFromGray(img *image.Gray) *ConfidenceMask {
	b := img.Bounds()
	cm := newConfidenceMask(b.Dx(), b.Dy())
	for y := 0; y < cm.height; y++ {
		for x := 0; x < cm.width; x++ {
			cm.data[y*cm.width+x] = img.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0
		}
	}
	return cm
}

// Bounds returns the extent of the mask.
func (cm *ConfidenceMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, cm.width, cm.height)
}

// Confident reports whether the disparity at (x, y) was accepted.
func (cm *ConfidenceMask) Confident(x, y int) bool {
	if x < 0 || y < 0 || x >= cm.width || y >= cm.height {
		return false
	}
	return cm.data[y*cm.width+x]
}

// Count returns the number of accepted pixels.
func (cm *ConfidenceMask) Count() int {
	n := 0
	for _, ok := range cm.data {
		if ok {
			n++
		}
	}
	return n
}

// ToGray renders accepted pixels white and the rest black.
func (cm *ConfidenceMask) ToGray() *image.Gray {
	out := image.NewGray(cm.Bounds())
	for i, ok := range cm.data {
		if ok {
			out.Pix[i] = 255
		}
	}
	return out
}
