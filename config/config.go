// Package config defines the job file that drives a stereo evaluation run.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/stereo/stereo"
	"go.viam.com/stereo/utils"
)

// Matching methods.
const (
	MethodBrute    = "brute"
	MethodIntegral = "integral"
)

// Pass is one winner-take-all matching pass over the rank images.
type Pass struct {
	Name   string `json:"name"`
	Window int    `json:"window"`
	// Output is the disparity image to write, relative to the output directory.
	Output string `json:"output,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (p *Pass) Validate(path string) error {
	if p.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if err := stereo.NewWindow(p.Window).Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// ConfidencePass is a matching pass gated by the PKRN confidence test.
type ConfidencePass struct {
	Pass
	// Ratio is the largest best/second-best cost ratio still trusted.
	Ratio float64 `json:"ratio,omitempty"`
	// MaskOutput is the image of trusted pixels to write.
	MaskOutput string `json:"mask_output,omitempty"`
	// Report is the text report of this pass alone.
	Report string `json:"report,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *ConfidencePass) Validate(path string) error {
	if err := c.Pass.Validate(path); err != nil {
		return err
	}
	if c.Ratio < 0 {
		return utils.NewConfigValidationError(path, utils.NewOutOfRangeError("ratio", c.Ratio, ">= 0"))
	}
	return nil
}

// Job describes a full evaluation: load a rectified pair, rank transform it,
// run every pass, score each against ground truth and write the results.
type Job struct {
	Left        string `json:"left"`
	Right       string `json:"right"`
	GroundTruth string `json:"ground_truth,omitempty"`
	// OutputDir is where every output path is resolved. It defaults to the
	// directory of the job file.
	OutputDir string `json:"output_dir,omitempty"`

	// RankWindow is the rank transform window; 0 matches raw intensities.
	RankWindow     int    `json:"rank_window"`
	MinDisparity   int    `json:"min_disparity"`
	MaxDisparity   int    `json:"max_disparity"`
	HalfOpenWindow bool   `json:"half_open_window"`
	Method         string `json:"method"`

	// DisplayScale multiplies disparities when writing images.
	DisplayScale     int     `json:"display_scale"`
	GroundTruthScale float64 `json:"ground_truth_scale"`
	Tolerance        int     `json:"tolerance"`

	Passes     []Pass                   `json:"passes"`
	Confidence *ConfidencePass          `json:"confidence,omitempty"`
	Camera     *stereo.CameraParameters `json:"camera,omitempty"`

	Report     string `json:"report,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Plot       string `json:"plot,omitempty"`
	PointCloud string `json:"point_cloud,omitempty"`

	// ConfigFilePath is the file the job was read from, if any.
	ConfigFilePath string `json:"-"`
}

// Default returns the teddy evaluation: rank 5x5, SAD 3x3 and 15x15, and a
// 3x3 confidence pass, over disparities 0 to 63.
func Default() Job {
	return Job{
		Left:             "teddyL.pgm",
		Right:            "teddyR.pgm",
		GroundTruth:      "disp2.pgm",
		RankWindow:       5,
		MinDisparity:     0,
		MaxDisparity:     63,
		Method:           MethodBrute,
		DisplayScale:     4,
		GroundTruthScale: 4,
		Tolerance:        1,
		Passes: []Pass{
			{Name: "sad3", Window: 3, Output: "sad3.bmp"},
			{Name: "sad15", Window: 15, Output: "sad15.bmp"},
		},
		Confidence: &ConfidencePass{
			Pass:       Pass{Name: "pkrn3", Window: 3, Output: "pkrn3.bmp"},
			Ratio:      stereo.DefaultConfidenceRatio,
			MaskOutput: "pkrn3_mask.bmp",
			Report:     "PRKNError.txt",
		},
		Report:  "error.txt",
		Summary: "summary.json",
	}
}

// Validate ensures all parts of the config are valid.
func (j *Job) Validate(path string) error {
	if j.Left == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "left")
	}
	if j.Right == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "right")
	}
	if j.RankWindow != 0 {
		if err := stereo.NewWindow(j.RankWindow).Validate(); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrap(err, "rank_window"))
		}
	}
	if j.MinDisparity < 0 {
		return utils.NewConfigValidationError(path, utils.NewOutOfRangeError("min_disparity", j.MinDisparity, ">= 0"))
	}
	if j.MaxDisparity < j.MinDisparity {
		return utils.NewConfigValidationError(path,
			utils.NewOutOfRangeError("max_disparity", j.MaxDisparity, fmt.Sprintf(">= min_disparity (%d)", j.MinDisparity)))
	}
	switch j.Method {
	case "":
		j.Method = MethodBrute
	case MethodBrute, MethodIntegral:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown method %q", j.Method))
	}
	if j.DisplayScale < 0 {
		return utils.NewConfigValidationError(path, utils.NewOutOfRangeError("display_scale", j.DisplayScale, ">= 0"))
	}
	if j.DisplayScale == 0 {
		j.DisplayScale = 1
	}
	if j.GroundTruthScale < 0 {
		return utils.NewConfigValidationError(path, utils.NewOutOfRangeError("ground_truth_scale", j.GroundTruthScale, ">= 0"))
	}
	if j.Tolerance < 0 {
		return utils.NewConfigValidationError(path, utils.NewOutOfRangeError("tolerance", j.Tolerance, ">= 0"))
	}
	if len(j.Passes) == 0 && j.Confidence == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "passes")
	}

	names := map[string]bool{}
	for i := range j.Passes {
		p := &j.Passes[i]
		if err := p.Validate(fmt.Sprintf("%s.passes.%d", path, i)); err != nil {
			return err
		}
		if names[p.Name] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate pass name %q", p.Name))
		}
		names[p.Name] = true
	}
	if j.Confidence != nil {
		if err := j.Confidence.Validate(path + ".confidence"); err != nil {
			return err
		}
		if names[j.Confidence.Name] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate pass name %q", j.Confidence.Name))
		}
	}

	if j.Camera != nil {
		if err := j.Camera.Validate(); err != nil {
			return utils.NewConfigValidationError(path+".camera", err)
		}
	}
	if j.PointCloud != "" && j.Camera == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "camera")
	}
	return nil
}

// MatchConfig returns the matcher settings for a pass window.
func (j *Job) MatchConfig(window int) stereo.MatchConfig {
	return stereo.MatchConfig{
		MinDisparity: j.MinDisparity,
		MaxDisparity: j.MaxDisparity,
		Window:       stereo.Window{Size: window, HalfOpen: j.HalfOpenWindow},
	}
}

// RankTransformWindow returns the rank window, and false when ranking is disabled.
func (j *Job) RankTransformWindow() (stereo.Window, bool) {
	if j.RankWindow == 0 {
		return stereo.Window{}, false
	}
	return stereo.Window{Size: j.RankWindow, HalfOpen: j.HalfOpenWindow}, true
}

// Scoring returns the ground truth comparison settings.
func (j *Job) Scoring() stereo.Scoring {
	return stereo.Scoring{Scale: j.GroundTruthScale, Tolerance: j.Tolerance}
}

// InputPath resolves an input file against the directory of the job file.
func (j *Job) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) || j.ConfigFilePath == "" {
		return name
	}
	return filepath.Join(filepath.Dir(j.ConfigFilePath), name)
}

// OutputPath resolves an output file against OutputDir, or the directory of
// the job file when OutputDir is unset. Empty names stay empty.
func (j *Job) OutputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	dir := j.OutputDir
	if !filepath.IsAbs(dir) && j.ConfigFilePath != "" {
		dir = filepath.Join(filepath.Dir(j.ConfigFilePath), dir)
	}
	return filepath.Join(dir, name)
}
