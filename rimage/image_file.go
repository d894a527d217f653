package rimage

import (
	"image"
	"image/draw"
	_ "image/gif"  // register gif
	_ "image/jpeg" // register jpeg
	_ "image/png"  // register png
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff" // register tiff
)

var (
	// ErrImageNotFound is returned when an image cannot be found or decoded.
	ErrImageNotFound = errors.New("image not found")
	// ErrWriteFailed is returned when an output file cannot be written.
	ErrWriteFailed = errors.New("write failed")
)

// IsImageFile returns if the given file is an image file based on what
// we support.
func IsImageFile(fn string) bool {
	extensions := []string{".pgm", ".ppm", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif"}
	for _, suffix := range extensions {
		if strings.HasSuffix(strings.ToLower(fn), suffix) {
			return true
		}
	}
	return false
}

// ReadImageFromFile decodes the image at the given path in whatever format was
// registered for it.
func ReadImageFromFile(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(ErrImageNotFound, "%s: %v", path, err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrImageNotFound, "no image data in %s: %v", path, err)
	}
	return img, nil
}

// ReadGrayFromFile reads the image at the given path as single channel 8-bit intensities.
func ReadGrayFromFile(path string) (*image.Gray, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToGray converts any image into an *image.Gray whose bounds start at the origin.
// An *image.Gray already at the origin is returned as is.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// ToRGBA converts any image into an *image.RGBA whose bounds start at the
// origin. An *image.RGBA already at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// WriteImageToFile writes the given image to a file at the supplied path. The
// encoding is chosen from the extension.
func WriteImageToFile(path string, img image.Image) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pgm", ".ppm", ".bmp":
	default:
		if err := imaging.Save(img, path); err != nil {
			return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
		}
		return nil
	}

	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(ErrWriteFailed, "%s: %v", path, closeErr)
		}
	}()

	switch ext {
	case ".pgm":
		err = EncodePGM(f, ToGray(img))
	case ".ppm":
		err = ppm.Encode(f, ToRGBA(img))
	case ".bmp":
		err = bmp.Encode(f, img)
	}
	if err != nil {
		return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
	}
	return nil
}
