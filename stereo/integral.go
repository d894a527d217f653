package stereo

import (
	"math"

	"go.viam.com/stereo/utils"
)

// integralImage holds running sums with an extra leading row and column of
// zeros, so sums[(y+1)*stride+(x+1)] is the total of every sample at or above
// and left of (x, y).
type integralImage struct {
	stride int
	sums   []int64
}

func newIntegralImage(width, height int) *integralImage {
	return &integralImage{stride: width + 1, sums: make([]int64, (width+1)*(height+1))}
}

// fillAbsDiff rebuilds the integral image of |l(x, y) - r(x-d, y)|. Columns left
// of d have no partner in r and contribute zero; no evaluated window reaches them.
func (ii *integralImage) fillAbsDiff(l, r plane, d int) {
	for y := 0; y < l.height; y++ {
		var rowSum int64
		lrow := l.data[y*l.width:]
		rrow := r.data[y*r.width:]
		above := ii.sums[y*ii.stride:]
		cur := ii.sums[(y+1)*ii.stride:]
		for x := 0; x < l.width; x++ {
			if x >= d {
				diff := lrow[x] - rrow[x-d]
				if diff < 0 {
					diff = -diff
				}
				rowSum += int64(diff)
			}
			cur[x+1] = above[x+1] + rowSum
		}
	}
}

// sum returns the total over the inclusive rectangle [x1,x2]x[y1,y2]. An empty
// rectangle (x2 == x1-1 or y2 == y1-1) sums to zero.
func (ii *integralImage) sum(x1, y1, x2, y2 int) int64 {
	s := ii.stride
	return ii.sums[(y2+1)*s+(x2+1)] - ii.sums[y1*s+(x2+1)] - ii.sums[(y2+1)*s+x1] + ii.sums[y1*s+x1]
}

// MatchDisparityIntegral produces the same map as MatchDisparity but aggregates
// window costs with an integral image per candidate disparity, making the cost
// of a pixel independent of the window size.
func MatchDisparityIntegral(left, right Source, cfg MatchConfig) (*DisparityMap, error) {
	l, r, err := preparePair(left, right, cfg)
	if err != nil {
		return nil, err
	}
	region := cfg.evaluatedRegion(l.size())
	dm := newDisparityMap(l.width, l.height, cfg.MinDisparity, region)
	if region.Empty() {
		return dm, nil
	}

	lo, hi := cfg.Window.Offsets()
	best := make([]int64, len(dm.data))
	for i := range best {
		best[i] = math.MaxInt64
	}
	ii := newIntegralImage(l.width, l.height)
	// disparities must be visited in ascending order for ties to match the brute force scan
	for d := cfg.MinDisparity; d <= cfg.MaxDisparity; d++ {
		ii.fillAbsDiff(l, r, d)
		utils.ParallelForEachPixel(region.Size(), func(i, j int) {
			x, y := region.Min.X+i, region.Min.Y+j
			k := y*dm.width + x
			cost := ii.sum(x+lo, y+lo, x+hi, y+hi)
			if cost < best[k] {
				best[k] = cost
				dm.data[k] = d
			}
		})
	}
	return dm, nil
}
