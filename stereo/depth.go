package stereo

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CameraParameters describe a rectified stereo rig.
type CameraParameters struct {
	// Baseline is the distance between the two camera centres, in output units.
	Baseline float64 `json:"baseline"`
	// FocalLength is in pixels.
	FocalLength float64 `json:"focal_length"`
	PrincipalX  float64 `json:"principal_x"`
	PrincipalY  float64 `json:"principal_y"`
}

// Validate ensures depth can be recovered with these parameters.
func (cam CameraParameters) Validate() error {
	if cam.Baseline <= 0 || cam.FocalLength <= 0 {
		return newInvalidParameterError("baseline %v and focal length %v must be positive", cam.Baseline, cam.FocalLength)
	}
	return nil
}

// Project back-projects pixel (x, y) with disparity d through a pinhole model
// centred on the principal point. d must be positive.
func (cam CameraParameters) Project(x, y, d float64) r3.Vector {
	z := cam.Baseline * cam.FocalLength / d
	return r3.Vector{
		X: (x - cam.PrincipalX) * z / cam.FocalLength,
		Y: (y - cam.PrincipalY) * z / cam.FocalLength,
		Z: z,
	}
}

// Usable reports whether the disparity at (x, y) can be turned into depth: it
// lies inside Valid, is positive, and is trusted by mask when mask is non-nil.
func (dm *DisparityMap) Usable(x, y int, mask *ConfidenceMask) bool {
	if !image.Pt(x, y).In(dm.valid) {
		return false
	}
	if mask != nil && !mask.Confident(x, y) {
		return false
	}
	return dm.GetDisparity(x, y) > 0
}

// ToDepth converts disparities to depth with Z = baseline*focal/disparity. The
// result has one row per image row. Pixels outside Valid, with zero disparity,
// or untrusted by a non-nil mask are 0.
func (dm *DisparityMap) ToDepth(cam CameraParameters, mask *ConfidenceMask) (*mat.Dense, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	if dm.width == 0 || dm.height == 0 {
		return nil, errors.New("cannot compute depth of an empty disparity map")
	}
	depth := mat.NewDense(dm.height, dm.width, nil)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			if !dm.Usable(x, y, mask) {
				continue
			}
			depth.Set(y, x, cam.Baseline*cam.FocalLength/float64(dm.GetDisparity(x, y)))
		}
	}
	return depth, nil
}

// ToPoints back-projects every usable pixel in row-major order.
func (dm *DisparityMap) ToPoints(cam CameraParameters, mask *ConfidenceMask) ([]r3.Vector, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	var points []r3.Vector
	for y := dm.valid.Min.Y; y < dm.valid.Max.Y; y++ {
		for x := dm.valid.Min.X; x < dm.valid.Max.X; x++ {
			if !dm.Usable(x, y, mask) {
				continue
			}
			points = append(points, cam.Project(float64(x), float64(y), float64(dm.GetDisparity(x, y))))
		}
	}
	return points, nil
}
