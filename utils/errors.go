package utils

import (
	"github.com/pkg/errors"
)

// NewConfigValidationError returns an error specifying that the config at the given
// path is invalid.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// NewConfigValidationFieldRequiredError returns an error specifying that the given
// field is required for the config at the given path.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}

// NewOutOfRangeError is used when a numeric setting falls outside its allowed range.
func NewOutOfRangeError(name string, value interface{}, constraint string) error {
	return errors.Errorf("%s %v out of range: must be %s", name, value, constraint)
}
