// Package pointcloud holds the points recovered from a disparity map and
// writes them in PCD and PLY form.
package pointcloud

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/stereo/stereo"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns metadata with inverted bounds, ready to be merged into.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

func (meta *MetaData) merge(p r3.Vector) {
	meta.MinX = math.Min(meta.MinX, p.X)
	meta.MaxX = math.Max(meta.MaxX, p.X)
	meta.MinY = math.Min(meta.MinY, p.Y)
	meta.MaxY = math.Max(meta.MaxY, p.Y)
	meta.MinZ = math.Min(meta.MinZ, p.Z)
	meta.MaxZ = math.Max(meta.MaxZ, p.Z)
}

// Cloud is an ordered list of points with optional colors. A cloud is either
// entirely colored or not colored at all.
type Cloud struct {
	points []r3.Vector
	colors []color.NRGBA
	meta   MetaData
}

// New returns an empty, uncolored cloud.
func New() *Cloud {
	return NewWithPrealloc(0, false)
}

// NewWithPrealloc returns an empty cloud with room for size points.
func NewWithPrealloc(size int, hasColor bool) *Cloud {
	c := &Cloud{points: make([]r3.Vector, 0, size), meta: NewMetaData()}
	if hasColor {
		c.colors = make([]color.NRGBA, 0, size)
		c.meta.HasColor = true
	}
	return c
}

// Size returns the number of points in the cloud.
func (c *Cloud) Size() int {
	return len(c.points)
}

// MetaData returns the bounds and color state of the cloud.
func (c *Cloud) MetaData() MetaData {
	return c.meta
}

// Add appends a point. The color is ignored by uncolored clouds.
func (c *Cloud) Add(p r3.Vector, col color.NRGBA) {
	c.points = append(c.points, p)
	if c.meta.HasColor {
		c.colors = append(c.colors, col)
	}
	c.meta.merge(p)
}

// Points returns the positions in insertion order.
func (c *Cloud) Points() []r3.Vector {
	return c.points
}

// Iterate calls fn on every point in insertion order until fn returns false.
// Uncolored clouds pass a zero color.
func (c *Cloud) Iterate(fn func(p r3.Vector, col color.NRGBA) bool) {
	for i, p := range c.points {
		var col color.NRGBA
		if c.meta.HasColor {
			col = c.colors[i]
		}
		if !fn(p, col) {
			return
		}
	}
}

// FromPoints builds an uncolored cloud from positions.
func FromPoints(points []r3.Vector) *Cloud {
	c := NewWithPrealloc(len(points), false)
	for _, p := range points {
		c.Add(p, color.NRGBA{})
	}
	return c
}

// FromDisparity back-projects every usable pixel of dm. When img is non-nil
// each point is colored with the intensity of the matching left image pixel.
func FromDisparity(dm *stereo.DisparityMap, cam stereo.CameraParameters, mask *stereo.ConfidenceMask, img *image.Gray) (*Cloud, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	v := dm.Valid()
	c := NewWithPrealloc(v.Dx()*v.Dy(), img != nil)
	for y := v.Min.Y; y < v.Max.Y; y++ {
		for x := v.Min.X; x < v.Max.X; x++ {
			if !dm.Usable(x, y, mask) {
				continue
			}
			var col color.NRGBA
			if img != nil {
				b := img.Bounds()
				g := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
				col = color.NRGBA{g, g, g, 255}
			}
			c.Add(cam.Project(float64(x), float64(y), float64(dm.GetDisparity(x, y))), col)
		}
	}
	return c, nil
}
