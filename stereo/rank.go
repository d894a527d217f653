package stereo

import (
	"image"

	"go.viam.com/stereo/utils"
)

// RankImage is the rank transform of a Source. Each interior sample is the
// number of samples in the surrounding window strictly less than the centre.
// Samples in the border band, where the window does not fit, are zero.
type RankImage struct {
	plane
	window Window
}

// Bounds returns the extent of the rank image, always anchored at the origin.
func (ri *RankImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, ri.width, ri.height)
}

// Sample returns the rank at (x, y).
func (ri *RankImage) Sample(x, y int) int {
	return int(ri.at(x, y))
}

// Window returns the window the ranks were counted over.
func (ri *RankImage) Window() Window {
	return ri.window
}

// MaxRank is the largest rank the window can produce.
func (ri *RankImage) MaxRank() int {
	return ri.window.Size*ri.window.Size - 1
}

// ToGray stretches ranks over [0,255] for display.
func (ri *RankImage) ToGray() *image.Gray {
	out := image.NewGray(ri.Bounds())
	maxRank := ri.MaxRank()
	if maxRank == 0 {
		return out
	}
	for i, v := range ri.data {
		out.Pix[i] = uint8(int(v) * 255 / maxRank)
	}
	return out
}

// RankTransform replaces every sample whose window fits inside src by the count
// of window samples strictly less than it. The centre is scanned but never
// counts itself. Ranks are unchanged by any strictly increasing remapping of
// the input intensities.
func RankTransform(src Source, w Window) (*RankImage, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	in := planeOf(src)
	out := &RankImage{
		plane:  plane{width: in.width, height: in.height, data: make([]int32, len(in.data))},
		window: w,
	}

	r := w.Radius()
	lo, hi := w.Offsets()
	interior := image.Point{in.width - 2*r, in.height - 2*r}
	utils.ParallelForEachPixel(interior, func(i, j int) {
		x, y := i+r, j+r
		center := in.at(x, y)
		var rank int32
		for wy := lo; wy <= hi; wy++ {
			row := in.data[(y+wy)*in.width:]
			for wx := lo; wx <= hi; wx++ {
				if row[x+wx] < center {
					rank++
				}
			}
		}
		out.data[y*out.width+x] = rank
	})
	return out, nil
}
