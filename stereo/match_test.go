package stereo

import (
	"fmt"
	"image"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stereo/utils"
)

type matchFunc func(left, right Source, cfg MatchConfig) (*DisparityMap, error)

var matchers = map[string]matchFunc{
	"brute":    MatchDisparity,
	"integral": MatchDisparityIntegral,
	"confidence": func(left, right Source, cfg MatchConfig) (*DisparityMap, error) {
		dm, _, err := MatchWithConfidence(left, right, cfg)
		return dm, err
	},
}

func TestMatchInvalidParameters(t *testing.T) {
	img := NewGraySource(uniformGray(10, 10, 5))
	for name, match := range matchers {
		t.Run(name, func(t *testing.T) {
			for _, cfg := range []MatchConfig{
				{MinDisparity: 0, MaxDisparity: 2, Window: NewWindow(4)},
				{MinDisparity: 0, MaxDisparity: 2, Window: NewWindow(0)},
				{MinDisparity: -1, MaxDisparity: 2, Window: NewWindow(3)},
				{MinDisparity: 3, MaxDisparity: 2, Window: NewWindow(3)},
				{MinDisparity: 0, MaxDisparity: 2, Window: NewWindow(3), ConfidenceRatio: -0.5},
			} {
				dm, err := match(img, img, cfg)
				test.That(t, dm, test.ShouldBeNil)
				test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
			}

			other := NewGraySource(uniformGray(10, 9, 5))
			dm, err := match(img, other, MatchConfig{MaxDisparity: 2, Window: NewWindow(3)})
			test.That(t, dm, test.ShouldBeNil)
			test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, "left is 10x10, right is 10x9")
		})
	}
}

func TestMatchSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	img := NewGraySource(randomGray(rng, 30, 20))
	ranks, err := RankTransform(img, NewWindow(5))
	test.That(t, err, test.ShouldBeNil)
	cfg := MatchConfig{MinDisparity: 0, MaxDisparity: 6, Window: NewWindow(3)}
	for name, match := range matchers {
		t.Run(name, func(t *testing.T) {
			for _, src := range []Source{img, ranks} {
				dm, err := match(src, src, cfg)
				test.That(t, err, test.ShouldBeNil)
				v := dm.Valid()
				test.That(t, v, test.ShouldResemble, image.Rect(7, 1, 29, 19))
				for y := v.Min.Y; y < v.Max.Y; y++ {
					for x := v.Min.X; x < v.Max.X; x++ {
						test.That(t, dm.GetDisparity(x, y), test.ShouldEqual, 0)
					}
				}
			}
		})
	}
}

func TestMatchDisparityRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	left := NewGraySource(randomGray(rng, 40, 12))
	right := NewGraySource(randomGray(rng, 40, 12))
	cfg := MatchConfig{MinDisparity: 2, MaxDisparity: 7, Window: NewWindow(5)}
	for name, match := range matchers {
		t.Run(name, func(t *testing.T) {
			dm, err := match(left, right, cfg)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 40, 12))
			for y := 0; y < dm.Height(); y++ {
				for x := 0; x < dm.Width(); x++ {
					d := dm.GetDisparity(x, y)
					if name == "confidence" && d == 0 {
						continue
					}
					test.That(t, d, test.ShouldBeGreaterThanOrEqualTo, 2)
					test.That(t, d, test.ShouldBeLessThanOrEqualTo, 7)
				}
			}
		})
	}
}

func TestMatchFallbackOutsideValidRegion(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	left, right := shiftedPair(rng, 24, 10, 2)
	cfg := MatchConfig{MinDisparity: 1, MaxDisparity: 4, Window: NewWindow(3)}
	dm, err := MatchDisparity(NewGraySource(left), NewGraySource(right), cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Valid(), test.ShouldResemble, image.Rect(5, 1, 23, 9))
	for y := 0; y < 10; y++ {
		for x := 0; x < 24; x++ {
			if !image.Pt(x, y).In(dm.Valid()) {
				test.That(t, dm.Get(image.Pt(x, y)), test.ShouldEqual, 1)
			}
		}
	}
}

func TestMatchTooSmall(t *testing.T) {
	img := NewGraySource(uniformGray(6, 6, 1))
	for name, match := range matchers {
		t.Run(name, func(t *testing.T) {
			dm, err := match(img, img, MatchConfig{MinDisparity: 2, MaxDisparity: 5, Window: NewWindow(3)})
			test.That(t, err, test.ShouldBeNil)
			test.That(t, dm.Valid().Empty(), test.ShouldBeTrue)
			for _, row := range disparityGrid(dm) {
				for _, d := range row {
					test.That(t, d, test.ShouldEqual, 2)
				}
			}
		})
	}
}

func TestMatchTieBreak(t *testing.T) {
	// every row is constant, so shifting horizontally costs nothing and all
	// candidates tie at zero
	img := image.NewGray(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			img.Pix[y*12+x] = uint8(30 * y)
		}
	}
	src := NewGraySource(img)
	for _, minD := range []int{0, 3} {
		cfg := MatchConfig{MinDisparity: minD, MaxDisparity: minD + 1, Window: NewWindow(3)}
		for _, match := range []matchFunc{MatchDisparity, MatchDisparityIntegral} {
			dm, err := match(src, src, cfg)
			test.That(t, err, test.ShouldBeNil)
			for _, row := range disparityGrid(dm) {
				for _, d := range row {
					test.That(t, d, test.ShouldEqual, minD)
				}
			}
		}
	}

	// costs tie exactly between disparity 0 and 1
	left, err := gridFromRows([][]int{
		{0, 0, 0, 0, 0, 0},
		{0, 0, 9, 9, 9, 0},
		{0, 0, 0, 0, 0, 0},
	})
	test.That(t, err, test.ShouldBeNil)
	right, err := gridFromRows([][]int{
		{0, 0, 0, 0, 0, 0},
		{0, 9, 9, 9, 9, 0},
		{0, 0, 0, 0, 0, 0},
	})
	test.That(t, err, test.ShouldBeNil)
	lp, rp := planeOf(left), planeOf(right)
	lo, hi := NewWindow(3).Offsets()
	test.That(t, windowSAD(lp, rp, 3, 1, 0, lo, hi), test.ShouldEqual, windowSAD(lp, rp, 3, 1, 1, lo, hi))
	dm, err := MatchDisparity(left, right, MatchConfig{MinDisparity: 0, MaxDisparity: 1, Window: NewWindow(3)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDisparity(3, 1), test.ShouldEqual, 0)
}

func gridFromRows(rows [][]int) (*grid, error) {
	g := &grid{width: len(rows[0]), height: len(rows)}
	for y, row := range rows {
		if len(row) != g.width {
			return nil, fmt.Errorf("row %d is %d wide", y, len(row))
		}
		g.values = append(g.values, row...)
	}
	return g, nil
}

func TestMatchShiftedImage(t *testing.T) {
	// a 10x10 textured image shifted by d0 is recovered at every evaluated pixel
	const d0 = 2
	rng := rand.New(rand.NewSource(7))
	left, right := shiftedPair(rng, 10, 10, d0)
	cfg := MatchConfig{MinDisparity: 0, MaxDisparity: d0 + 2, Window: NewWindow(3)}
	for name, match := range matchers {
		t.Run(name, func(t *testing.T) {
			dm, err := match(NewGraySource(left), NewGraySource(right), cfg)
			test.That(t, err, test.ShouldBeNil)
			v := dm.Valid()
			test.That(t, v, test.ShouldResemble, image.Rect(5, 1, 9, 9))
			for y := v.Min.Y; y < v.Max.Y; y++ {
				for x := v.Min.X; x < v.Max.X; x++ {
					test.That(t, dm.GetDisparity(x, y), test.ShouldEqual, d0)
				}
			}
		})
	}
}

func TestMatchShiftedRankPipeline(t *testing.T) {
	const d0 = 3
	rng := rand.New(rand.NewSource(8))
	left, right := shiftedPair(rng, 40, 30, d0)
	rankWindow := NewWindow(3)
	leftRank, err := RankTransform(NewGraySource(left), rankWindow)
	test.That(t, err, test.ShouldBeNil)
	rightRank, err := RankTransform(NewGraySource(right), rankWindow)
	test.That(t, err, test.ShouldBeNil)

	cfg := MatchConfig{MinDisparity: 0, MaxDisparity: 6, Window: NewWindow(3)}
	dm, err := MatchDisparity(leftRank, rightRank, cfg)
	test.That(t, err, test.ShouldBeNil)
	// right ranks near the noise columns differ, so only check where both
	// rank windows saw shifted copies of the same pixels
	for y := 1; y < 29; y++ {
		for x := 7; x <= 37; x++ {
			test.That(t, dm.GetDisparity(x, y), test.ShouldEqual, d0)
		}
	}
}

func TestMatchAgainstNaiveScan(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	left := NewGraySource(randomGray(rng, 27, 14))
	right := NewGraySource(randomGray(rng, 27, 14))
	lg, rg := gridOf(left), gridOf(right)
	for _, size := range []int{1, 3, 5, 7} {
		for _, halfOpen := range []bool{false, true} {
			for _, span := range [][2]int{{0, 0}, {0, 4}, {2, 5}, {0, 9}} {
				cfg := MatchConfig{MinDisparity: span[0], MaxDisparity: span[1], Window: Window{Size: size, HalfOpen: halfOpen}}
				t.Run(fmt.Sprintf("w%d_half%v_%d_%d", size, halfOpen, span[0], span[1]), func(t *testing.T) {
					expected := naiveMatch(lg, rg, span[0], span[1], size, halfOpen)
					for _, match := range []matchFunc{MatchDisparity, MatchDisparityIntegral} {
						dm, err := match(left, right, cfg)
						test.That(t, err, test.ShouldBeNil)
						test.That(t, disparityGrid(dm), test.ShouldResemble, expected)
					}
				})
			}
		}
	}
}

func TestMatchParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	left, right := shiftedPair(rng, 48, 20, 4)
	cfg := MatchConfig{MinDisparity: 0, MaxDisparity: 8, Window: NewWindow(5)}

	parallel, err := MatchDisparity(NewGraySource(left), NewGraySource(right), cfg)
	test.That(t, err, test.ShouldBeNil)
	parallelDM, parallelMask, err := MatchWithConfidence(NewGraySource(left), NewGraySource(right), cfg)
	test.That(t, err, test.ShouldBeNil)

	saved := utils.ParallelFactor
	utils.ParallelFactor = 1
	defer func() { utils.ParallelFactor = saved }()

	sequential, err := MatchDisparity(NewGraySource(left), NewGraySource(right), cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, disparityGrid(sequential), test.ShouldResemble, disparityGrid(parallel))

	sequentialDM, sequentialMask, err := MatchWithConfidence(NewGraySource(left), NewGraySource(right), cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, disparityGrid(sequentialDM), test.ShouldResemble, disparityGrid(parallelDM))
	test.That(t, sequentialMask.ToGray().Pix, test.ShouldResemble, parallelMask.ToGray().Pix)
}

func TestMatchHalfOpenWindow(t *testing.T) {
	// with a half open window the right and bottom neighbours never contribute,
	// so a difference confined to them does not change the cost
	left, err := gridFromRows([][]int{
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
	})
	test.That(t, err, test.ShouldBeNil)
	right, err := gridFromRows([][]int{
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1},
		{1, 1, 1, 200, 1},
		{1, 1, 1, 1, 1},
	})
	test.That(t, err, test.ShouldBeNil)
	lp, rp := planeOf(left), planeOf(right)

	lo, hi := Window{Size: 3, HalfOpen: true}.Offsets()
	test.That(t, windowSAD(lp, rp, 2, 2, 0, lo, hi), test.ShouldEqual, int64(0))
	lo, hi = NewWindow(3).Offsets()
	test.That(t, windowSAD(lp, rp, 2, 2, 0, lo, hi), test.ShouldEqual, int64(199))
	test.That(t, Window{Size: 3, HalfOpen: true}.Area(), test.ShouldEqual, 4)
	test.That(t, NewWindow(3).Area(), test.ShouldEqual, 9)
}
