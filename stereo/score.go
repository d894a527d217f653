package stereo

import (
	"image"
	"math"

	"go.viam.com/stereo/utils"
)

// Scoring controls how a candidate map is compared with ground truth.
type Scoring struct {
	// Scale divides ground truth intensities to bring them into disparity units.
	Scale float64
	// Tolerance is the largest absolute difference still counted as correct.
	Tolerance int
}

// DefaultScoring matches ground truth stored at four times the disparity,
// with a tolerance of one pixel.
func DefaultScoring() Scoring {
	return Scoring{Scale: 4, Tolerance: 1}
}

// ErrorRate returns the fraction of ground truth pixels whose candidate
// disparity differs from round(truth/scale) by more than the tolerance. The
// denominator is always the full ground truth area, border pixels included.
func ErrorRate(candidate *DisparityMap, groundTruth *image.Gray, s Scoring) float64 {
	return errorRate(candidate, nil, groundTruth, s)
}

// ErrorRateWithMask is ErrorRate counting only errors at pixels the mask trusts.
func ErrorRateWithMask(candidate *DisparityMap, mask *ConfidenceMask, groundTruth *image.Gray, s Scoring) float64 {
	if mask == nil {
		mask = newConfidenceMask(0, 0)
	}
	return errorRate(candidate, mask, groundTruth, s)
}

func errorRate(candidate *DisparityMap, mask *ConfidenceMask, groundTruth *image.Gray, s Scoring) float64 {
	b := groundTruth.Bounds()
	area := b.Dx() * b.Dy()
	if area == 0 {
		return 0
	}
	scale := s.Scale
	if scale <= 0 {
		scale = 1
	}
	tolerance := utils.MaxInt(s.Tolerance, 0)

	width := utils.MinInt(candidate.width, b.Dx())
	height := utils.MinInt(candidate.height, b.Dy())
	count := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask != nil && !mask.Confident(x, y) {
				continue
			}
			expected := int(math.Round(float64(groundTruth.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / scale))
			if utils.AbsInt(candidate.GetDisparity(x, y)-expected) > tolerance {
				count++
			}
		}
	}
	return float64(count) / float64(area)
}
