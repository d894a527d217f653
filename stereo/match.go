package stereo

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/stereo/utils"
)

// DefaultConfidenceRatio is the PKRN threshold used when MatchConfig leaves it unset.
const DefaultConfidenceRatio = 0.5

// MatchConfig describes a disparity search.
type MatchConfig struct {
	// MinDisparity and MaxDisparity bound the candidates, inclusive.
	MinDisparity int
	MaxDisparity int
	Window       Window

	// ConfidenceRatio is the largest best/second-best cost ratio a pixel may have
	// and still be trusted by MatchWithConfidence. Zero means DefaultConfidenceRatio.
	// The ratio is best over second: 0.5 trusts a pixel only when the runner-up
	// costs at least twice the winner. Thresholds written as second/best must be
	// inverted.
	ConfidenceRatio float64
}

// Validate ensures the window and disparity range are usable.
func (cfg MatchConfig) Validate() error {
	if err := cfg.Window.Validate(); err != nil {
		return err
	}
	if cfg.MinDisparity < 0 || cfg.MaxDisparity < cfg.MinDisparity {
		return newInvalidParameterError("disparity range [%d, %d] must satisfy 0 <= min <= max",
			cfg.MinDisparity, cfg.MaxDisparity)
	}
	if cfg.ConfidenceRatio < 0 || math.IsNaN(cfg.ConfidenceRatio) {
		return newInvalidParameterError("confidence ratio %v must not be negative", cfg.ConfidenceRatio)
	}
	return nil
}

func (cfg MatchConfig) confidenceRatio() float64 {
	if cfg.ConfidenceRatio == 0 {
		return DefaultConfidenceRatio
	}
	return cfg.ConfidenceRatio
}

// evaluatedRegion is the set of pixels whose window fits in both images for
// every candidate disparity. The right patch for disparity d is centred d
// pixels to the left, so the region starts radius+max columns in.
func (cfg MatchConfig) evaluatedRegion(size image.Point) image.Rectangle {
	r := cfg.Window.Radius()
	// built by hand since image.Rect would swap inverted corners
	region := image.Rectangle{
		Min: image.Point{r + cfg.MaxDisparity, r},
		Max: image.Point{size.X - r, size.Y - r},
	}
	if region.Empty() {
		return image.Rectangle{}
	}
	return region
}

func preparePair(left, right Source, cfg MatchConfig) (plane, plane, error) {
	if err := cfg.Validate(); err != nil {
		return plane{}, plane{}, err
	}
	ls, rs := left.Bounds().Size(), right.Bounds().Size()
	if ls != rs {
		return plane{}, plane{}, errors.Wrapf(ErrDimensionMismatch, "left is %dx%d, right is %dx%d", ls.X, ls.Y, rs.X, rs.Y)
	}
	return planeOf(left), planeOf(right), nil
}

// windowSAD is the sum of absolute differences between the window centred at
// (x, y) in l and the window centred at (x-d, y) in r.
func windowSAD(l, r plane, x, y, d, lo, hi int) int64 {
	var sum int64
	for wy := lo; wy <= hi; wy++ {
		lrow := l.data[(y+wy)*l.width:]
		rrow := r.data[(y+wy)*r.width:]
		for wx := lo; wx <= hi; wx++ {
			diff := lrow[x+wx] - rrow[x+wx-d]
			if diff < 0 {
				diff = -diff
			}
			sum += int64(diff)
		}
	}
	return sum
}

// costScan is the outcome of scanning every candidate disparity at one pixel.
type costScan struct {
	disparity int
	best      int64
	// second is the second smallest cost over the whole range. It equals best
	// when two candidates tie and stays at math.MaxInt64 for a single candidate.
	second int64
}

// scanDisparities evaluates candidates in ascending order and only replaces
// the winner on strict improvement, so the smallest disparity wins ties.
func scanDisparities(l, r plane, x, y int, cfg MatchConfig) costScan {
	lo, hi := cfg.Window.Offsets()
	scan := costScan{disparity: cfg.MinDisparity, best: math.MaxInt64, second: math.MaxInt64}
	for d := cfg.MinDisparity; d <= cfg.MaxDisparity; d++ {
		cost := windowSAD(l, r, x, y, d, lo, hi)
		switch {
		case cost < scan.best:
			scan.second = scan.best
			scan.best = cost
			scan.disparity = d
		case cost < scan.second:
			scan.second = cost
		}
	}
	return scan
}

// confident is the PKRN gate: the winner must beat the runner up by the given
// ratio. Flat cost curves (best == second) and all-zero costs are rejected.
func confident(scan costScan, ratio float64) bool {
	if scan.second == 0 {
		return false
	}
	return float64(scan.best)/float64(scan.second) <= ratio
}

// MatchDisparity computes a winner-take-all disparity map for a rectified pair
// using windowed SAD. Pixels that cannot be matched over the full disparity
// range keep cfg.MinDisparity.
func MatchDisparity(left, right Source, cfg MatchConfig) (*DisparityMap, error) {
	l, r, err := preparePair(left, right, cfg)
	if err != nil {
		return nil, err
	}
	region := cfg.evaluatedRegion(l.size())
	dm := newDisparityMap(l.width, l.height, cfg.MinDisparity, region)
	utils.ParallelForEachPixel(region.Size(), func(i, j int) {
		x, y := region.Min.X+i, region.Min.Y+j
		dm.data[y*dm.width+x] = scanDisparities(l, r, x, y, cfg).disparity
	})
	return dm, nil
}

// MatchWithConfidence is MatchDisparity with the PKRN confidence gate applied.
// Rejected pixels hold zero and are false in the returned mask; unevaluated
// pixels hold cfg.MinDisparity and are false as well.
func MatchWithConfidence(left, right Source, cfg MatchConfig) (*DisparityMap, *ConfidenceMask, error) {
	l, r, err := preparePair(left, right, cfg)
	if err != nil {
		return nil, nil, err
	}
	region := cfg.evaluatedRegion(l.size())
	dm := newDisparityMap(l.width, l.height, cfg.MinDisparity, region)
	mask := newConfidenceMask(l.width, l.height)
	ratio := cfg.confidenceRatio()
	utils.ParallelForEachPixel(region.Size(), func(i, j int) {
		x, y := region.Min.X+i, region.Min.Y+j
		k := y*dm.width + x
		scan := scanDisparities(l, r, x, y, cfg)
		if confident(scan, ratio) {
			dm.data[k] = scan.disparity
			mask.data[k] = true
		} else {
			dm.data[k] = 0
		}
	})
	return dm, mask, nil
}
