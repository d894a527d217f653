package stereo

import (
	"image"
	"math/rand"
)

// grid is a plain Source used to exercise the generic input path.
type grid struct {
	width, height int
	values        []int
}

func (g *grid) Bounds() image.Rectangle { return image.Rect(0, 0, g.width, g.height) }

func (g *grid) Sample(x, y int) int { return g.values[y*g.width+x] }

func randomGray(rng *rand.Rand, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// shiftedPair returns a textured left image and a right image in which every
// left pixel (x, y) appears at (x-d0, y). Columns of right with no partner in
// left are filled with fresh noise.
func shiftedPair(rng *rand.Rand, w, h, d0 int) (*image.Gray, *image.Gray) {
	left := randomGray(rng, w, h)
	right := image.NewGray(left.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+d0 < w {
				right.Pix[y*w+x] = left.Pix[y*w+x+d0]
			} else {
				right.Pix[y*w+x] = uint8(rng.Intn(256))
			}
		}
	}
	return left, right
}

func gridOf(src Source) [][]int {
	b := src.Bounds()
	out := make([][]int, b.Dy())
	for y := range out {
		out[y] = make([]int, b.Dx())
		for x := range out[y] {
			out[y][x] = src.Sample(b.Min.X+x, b.Min.Y+y)
		}
	}
	return out
}

func windowBounds(size int, halfOpen bool) (int, int) {
	c := (size - 1) / 2
	if halfOpen {
		return -c, c - 1
	}
	return -c, c
}

// naiveRank is a literal transcription of the rank transform definition.
func naiveRank(in [][]int, size int, halfOpen bool) [][]int {
	h, w := len(in), len(in[0])
	c := (size - 1) / 2
	lo, hi := windowBounds(size, halfOpen)
	out := make([][]int, h)
	for y := range out {
		out[y] = make([]int, w)
	}
	for r := c; r < h-c; r++ {
		for col := c; col < w-c; col++ {
			rank := 0
			for wr := lo; wr <= hi; wr++ {
				for wc := lo; wc <= hi; wc++ {
					if in[r+wr][col+wc] < in[r][col] {
						rank++
					}
				}
			}
			out[r][col] = rank
		}
	}
	return out
}

// naiveMatch is a literal winner-take-all SAD scan with no shared code.
func naiveMatch(left, right [][]int, minD, maxD, size int, halfOpen bool) [][]int {
	h, w := len(left), len(left[0])
	c := (size - 1) / 2
	lo, hi := windowBounds(size, halfOpen)
	out := make([][]int, h)
	for y := range out {
		out[y] = make([]int, w)
		for x := range out[y] {
			out[y][x] = minD
		}
	}
	for r := c; r < h-c; r++ {
		for col := c + maxD; col < w-c; col++ {
			prevCost := -1
			theMin := minD
			for d := minD; d <= maxD; d++ {
				cost := 0
				for wr := lo; wr <= hi; wr++ {
					for wc := lo; wc <= hi; wc++ {
						diff := left[r+wr][col+wc] - right[r+wr][col+wc-d]
						if diff < 0 {
							diff = -diff
						}
						cost += diff
					}
				}
				if prevCost < 0 || cost < prevCost {
					prevCost = cost
					theMin = d
				}
			}
			out[r][col] = theMin
		}
	}
	return out
}

func disparityGrid(dm *DisparityMap) [][]int {
	out := make([][]int, dm.Height())
	for y := range out {
		out[y] = make([]int, dm.Width())
		for x := range out[y] {
			out[y][x] = dm.GetDisparity(x, y)
		}
	}
	return out
}
