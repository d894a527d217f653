package rimage

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// PGM is not covered by the ppm package, which only knows P3/P6 pixmaps, so
// graymaps get their own small codec.
func init() {
	image.RegisterFormat("pgm", "P5", DecodePGM, DecodePGMConfig)
	image.RegisterFormat("pgm", "P2", DecodePGM, DecodePGMConfig)
}

type pgmHeader struct {
	magic  string
	width  int
	height int
	maxVal int
}

// readPGMToken reads the next whitespace separated token, skipping '#' comments.
func readPGMToken(r *bufio.Reader) (string, error) {
	var token []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(token) > 0 {
				return string(token), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(token) == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", err
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(token) > 0 {
				return string(token), nil
			}
		default:
			token = append(token, b)
		}
	}
}

func readPGMInt(r *bufio.Reader, what string) (int, error) {
	tok, err := readPGMToken(r)
	if err != nil {
		return 0, errors.Wrapf(err, "reading pgm %s", what)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.Wrapf(err, "bad pgm %s", what)
	}
	return v, nil
}

func readPGMHeader(r *bufio.Reader) (pgmHeader, error) {
	var h pgmHeader
	magic, err := readPGMToken(r)
	if err != nil {
		return h, errors.Wrap(err, "reading pgm magic")
	}
	if magic != "P5" && magic != "P2" {
		return h, errors.Errorf("not a pgm file, magic %q", magic)
	}
	h.magic = magic
	if h.width, err = readPGMInt(r, "width"); err != nil {
		return h, err
	}
	if h.height, err = readPGMInt(r, "height"); err != nil {
		return h, err
	}
	if h.maxVal, err = readPGMInt(r, "maxval"); err != nil {
		return h, err
	}
	if h.width <= 0 || h.height <= 0 || h.width >= 100000 || h.height >= 100000 {
		return h, errors.Errorf("bad width or height for pgm %v %v", h.width, h.height)
	}
	if h.maxVal <= 0 || h.maxVal > 65535 {
		return h, errors.Errorf("bad pgm maxval %d", h.maxVal)
	}
	return h, nil
}

// DecodePGMConfig returns the dimensions of a PGM image without decoding the samples.
func DecodePGMConfig(r io.Reader) (image.Config, error) {
	h, err := readPGMHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.GrayModel, Width: h.width, Height: h.height}, nil
}

// DecodePGM reads a binary (P5) or plain (P2) graymap. Samples are rescaled to
// [0,255] when maxval is not 255.
func DecodePGM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readPGMHeader(br)
	if err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, h.width, h.height))
	scale := func(v int) uint8 {
		if h.maxVal == 255 {
			return uint8(v)
		}
		return uint8((v*255 + h.maxVal/2) / h.maxVal)
	}

	n := h.width * h.height
	if h.magic == "P2" {
		for i := 0; i < n; i++ {
			v, err := readPGMInt(br, "sample")
			if err != nil {
				return nil, err
			}
			if v < 0 || v > h.maxVal {
				return nil, errors.Errorf("pgm sample %d exceeds maxval %d", v, h.maxVal)
			}
			img.Pix[i] = scale(v)
		}
		return img, nil
	}

	bytesPerSample := 1
	if h.maxVal > 255 {
		bytesPerSample = 2
	}
	raw := make([]byte, n*bytesPerSample)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, errors.Wrap(err, "reading pgm samples")
	}
	for i := 0; i < n; i++ {
		v := int(raw[i])
		if bytesPerSample == 2 {
			v = int(raw[2*i])<<8 | int(raw[2*i+1])
		}
		if v > h.maxVal {
			return nil, errors.Errorf("pgm sample %d exceeds maxval %d", v, h.maxVal)
		}
		img.Pix[i] = scale(v)
	}
	return img, nil
}

// EncodePGM writes img as a binary (P5) graymap with maxval 255.
func EncodePGM(w io.Writer, img *image.Gray) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		if _, err := bw.Write(img.Pix[start : start+b.Dx()]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
