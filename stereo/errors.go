package stereo

import "github.com/pkg/errors"

var (
	// ErrInvalidParameter is returned for even or non-positive window sizes and
	// malformed disparity ranges.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDimensionMismatch is returned when the left and right images differ in size.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

func newInvalidParameterError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}
