package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}

// CheckSameSize returns an error describing the two sizes when they differ.
func CheckSameSize(g1, g2 image.Image) error {
	if !SameImgSize(g1, g2) {
		return errors.Errorf("these images aren't the same size (%d %d) != (%d %d)",
			g1.Bounds().Dx(), g1.Bounds().Dy(), g2.Bounds().Dx(), g2.Bounds().Dy())
	}
	return nil
}

// RemapGray returns a copy of img with every intensity passed through f.
func RemapGray(img *image.Gray, f func(uint8) uint8) *image.Gray {
	out := image.NewGray(img.Bounds())
	for i, v := range img.Pix {
		out.Pix[i] = f(v)
	}
	return out
}

// NewGrayFromRows builds an image from rows of intensities. All rows must have
// the same length.
func NewGrayFromRows(rows [][]uint8) (*image.Gray, error) {
	if len(rows) == 0 {
		return image.NewGray(image.Rectangle{}), nil
	}
	width := len(rows[0])
	img := image.NewGray(image.Rect(0, 0, width, len(rows)))
	for y, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d samples, expected %d", y, len(row), width)
		}
		copy(img.Pix[img.PixOffset(0, y):], row)
	}
	return img, nil
}
