package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/stereo/rimage"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
)

func colorToPCDInt(c color.NRGBA) int {
	return (int(c.R) << 16) | (int(c.G) << 8) | int(c.B)
}

func pcdIntToColor(c int) color.NRGBA {
	return color.NRGBA{uint8(0xFF & (c >> 16)), uint8(0xFF & (c >> 8)), uint8(0xFF & c), 255}
}

// ToPCD writes the cloud as an unorganized PCD v0.7 file.
func ToPCD(cloud *Cloud, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDAscii:
		data = "ascii"
	case PCDBinary:
		data = "binary"
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}

	w := bufio.NewWriter(out)
	fields := "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n"
	if cloud.meta.HasColor {
		fields = "FIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n"
	}
	if _, err := fmt.Fprintf(w, "VERSION .7\n%sWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		fields, cloud.Size(), cloud.Size(), data); err != nil {
		return err
	}

	var err error
	buf := make([]byte, 16)
	cloud.Iterate(func(p r3.Vector, col color.NRGBA) bool {
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			n := 12
			if cloud.meta.HasColor {
				binary.LittleEndian.PutUint32(buf[12:], uint32(colorToPCDInt(col)))
				n = 16
			}
			_, err = w.Write(buf[:n])
		case PCDAscii:
			if cloud.meta.HasColor {
				_, err = fmt.Fprintf(w, "%f %f %f %d\n", p.X, p.Y, p.Z, colorToPCDInt(col))
			} else {
				_, err = fmt.Fprintf(w, "%f %f %f\n", p.X, p.Y, p.Z)
			}
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

type pcdHeader struct {
	hasColor bool
	points   int
	data     PCDType
}

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}
	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch value {
		case "x y z":
		case "x y z rgb":
			header.hasColor = true
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "POINTS":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Errorf("invalid POINTS field %s", value)
		}
		header.points = n
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	return nil
}

// ReadPCD reads an unorganized PCD file written by ToPCD.
func ReadPCD(inRaw io.Reader) (*Cloud, error) {
	var header pcdHeader
	in := bufio.NewReader(inRaw)
	for count := 0; count < len(pcdHeaderFields); {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", count)
		}
		line, _, _ = strings.Cut(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, count, &header); err != nil {
			return nil, err
		}
		count++
	}

	cloud := NewWithPrealloc(header.points, header.hasColor)
	fields := 3
	if header.hasColor {
		fields = 4
	}
	buf := make([]byte, 4*fields)
	for i := 0; i < header.points; i++ {
		vals := make([]float64, fields)
		switch header.data {
		case PCDAscii:
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			tokens := strings.Fields(line)
			if len(tokens) != fields {
				return nil, errors.Errorf("unexpected number of fields in point %d", i)
			}
			for j, token := range tokens {
				if vals[j], err = strconv.ParseFloat(token, 64); err != nil {
					return nil, errors.Wrapf(err, "invalid point %d field %s", i, token)
				}
			}
		case PCDBinary:
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			for j := 0; j < 3; j++ {
				vals[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:])))
			}
			if header.hasColor {
				vals[3] = float64(binary.LittleEndian.Uint32(buf[12:]))
			}
		}
		var col color.NRGBA
		if header.hasColor {
			col = pcdIntToColor(int(vals[3]))
		}
		cloud.Add(r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, col)
	}
	return cloud, nil
}

// ToPLY writes the cloud as an ascii PLY file with per vertex colors. Uncolored
// clouds are written white.
func ToPLY(cloud *Cloud, out io.Writer) error {
	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "ply\nformat ascii 1.0\nelement vertex %d\n"+
		"property float x\nproperty float y\nproperty float z\n"+
		"property uchar red\nproperty uchar green\nproperty uchar blue\nend_header\n", cloud.Size()); err != nil {
		return err
	}
	var err error
	cloud.Iterate(func(p r3.Vector, col color.NRGBA) bool {
		if !cloud.meta.HasColor {
			col = color.NRGBA{255, 255, 255, 255}
		}
		_, err = fmt.Fprintf(w, "%f %f %f %d %d %d\n", p.X, p.Y, p.Z, col.R, col.G, col.B)
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

// WriteToFile writes the cloud to path. A .ply extension writes PLY, anything
// else binary PCD.
func WriteToFile(path string, cloud *Cloud) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, closeErr)
		}
	}()

	if strings.EqualFold(filepath.Ext(path), ".ply") {
		err = ToPLY(cloud, f)
	} else {
		err = ToPCD(cloud, f, PCDBinary)
	}
	if err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	return nil
}

// ReadPLY reads an ascii PLY file such as the ones ToPLY writes. Vertex
// colors are kept when the file has red, green and blue properties.
func ReadPLY(in io.Reader) (cloud *Cloud, err error) {
	defer func() {
		// the parser panics on malformed input
		if r := recover(); r != nil {
			cloud, err = nil, errors.Errorf("invalid ply file: %v", r)
		}
	}()
	vertices := goply.New(in).Elements("vertex")
	if len(vertices) == 0 {
		return New(), nil
	}
	_, hasColor := vertices[0]["red"]
	cloud = NewWithPrealloc(len(vertices), hasColor)
	for i := range vertices {
		v := &vertices[i]
		x, okX := v.Property("x").(float32)
		y, okY := v.Property("y").(float32)
		z, okZ := v.Property("z").(float32)
		if !okX || !okY || !okZ {
			return nil, errors.Errorf("ply vertex %d needs float x, y and z", i)
		}
		var col color.NRGBA
		if hasColor {
			r, _ := v.Property("red").(uint8)
			g, _ := v.Property("green").(uint8)
			b, _ := v.Property("blue").(uint8)
			col = color.NRGBA{r, g, b, 255}
		}
		cloud.Add(r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}, col)
	}
	return cloud, nil
}

// NewFromFile reads a PCD or PLY file, chosen by extension.
func NewFromFile(path string) (*Cloud, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	if strings.EqualFold(filepath.Ext(path), ".ply") {
		return ReadPLY(f)
	}
	return ReadPCD(f)
}
