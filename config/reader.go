package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/stereo/logging"
	"go.viam.com/stereo/stereo"
)

// Read reads a job from the given file. Environment variables in the file are
// expanded before decoding.
func Read(filePath string, logger logging.Logger) (*Job, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a job from the given reader and specifies where, if
// applicable, the file the reader originated from. Keys missing from the
// input keep their Default values; a confidence object replaces the default
// confidence pass whole. Unknown keys are logged and ignored; a nil logger
// discards them.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Job, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("config")
	}
	var raw map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "failed to decode job from json")
	}

	job := Default()
	if _, ok := raw["confidence"].(map[string]interface{}); ok {
		job.Confidence = &ConfidencePass{Ratio: stereo.DefaultConfidenceRatio}
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     &job,
		Metadata:   &md,
		ZeroFields: true,
		Squash:     true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrapf(err, "failed to decode job")
	}
	for _, key := range md.Unused {
		logger.Warnw("unused job key", "key", key, "path", originalPath)
	}

	job.ConfigFilePath = originalPath
	if err := job.Validate("job"); err != nil {
		return nil, err
	}
	return &job, nil
}
