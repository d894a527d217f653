package cli

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/stereo/config"
	"go.viam.com/stereo/logging"
	"go.viam.com/stereo/pipeline"
	"go.viam.com/stereo/pointcloud"
	"go.viam.com/stereo/report"
	"go.viam.com/stereo/rimage"
	"go.viam.com/stereo/stereo"
	"go.viam.com/stereo/utils"
)

func actionContext(c *cli.Context) context.Context {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Bool(debugFlag) {
		ctx = logging.EnableDebugMode(ctx, "")
	}
	return ctx
}

// RunAction runs the job file given by --config.
func RunAction(c *cli.Context) error {
	logger := newLogger(c)
	job, err := config.Read(c.String(flagConfig), logger)
	if err != nil {
		return err
	}
	result, err := pipeline.Run(actionContext(c), job, logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", result.Summary.String())
	return nil
}

// RankAction writes the rank transform of an image, stretched to full range.
func RankAction(c *cli.Context) error {
	img, err := rimage.ReadGrayFromFile(c.String(flagInput))
	if err != nil {
		return err
	}
	ranks, err := stereo.RankTransform(stereo.NewGraySource(img), stereo.Window{
		Size:     c.Int(flagWindow),
		HalfOpen: c.Bool(flagHalfOpen),
	})
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(c.String(flagOutput), ranks.ToGray()); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s", c.String(flagOutput))
	return nil
}

// jobFromFlags builds a single pass job from the shared pair and match flags.
func jobFromFlags(c *cli.Context) (*config.Job, error) {
	job := config.Default()
	job.Left = c.String(flagLeft)
	job.Right = c.String(flagRight)
	job.GroundTruth = c.String(flagGroundTruth)
	job.RankWindow = c.Int(flagRankWindow)
	job.MinDisparity = c.Int(flagMin)
	job.MaxDisparity = c.Int(flagMax)
	job.HalfOpenWindow = c.Bool(flagHalfOpen)
	job.Method = c.String(flagMethod)
	if c.IsSet(flagTruthScale) {
		job.GroundTruthScale = c.Float64(flagTruthScale)
	}
	if c.IsSet(flagTolerance) {
		job.Tolerance = c.Int(flagTolerance)
	}
	window := c.Int(flagWindow)
	if window == 0 {
		window = 3
	}
	job.Passes = []config.Pass{{Name: fmt.Sprintf("sad%d", window), Window: window}}
	job.Confidence = nil
	if c.Bool(flagConfidence) {
		job.Confidence = &config.ConfidencePass{
			Pass:  config.Pass{Name: fmt.Sprintf("pkrn%d", window), Window: window},
			Ratio: c.Float64(flagRatio),
		}
	}
	if err := job.Validate("flags"); err != nil {
		return nil, err
	}
	return &job, nil
}

// matchPair loads the pair and runs the pass described by the flags. The mask
// is nil unless --confidence is given.
func matchPair(c *cli.Context, job *config.Job) (*pipeline.Pair, *stereo.DisparityMap, *stereo.ConfidenceMask, error) {
	pair, err := pipeline.LoadPair(job)
	if err != nil {
		return nil, nil, nil, err
	}
	left, right, err := pipeline.Sources(actionContext(c), job, pair)
	if err != nil {
		return nil, nil, nil, err
	}
	if job.Confidence != nil {
		if job.Method == config.MethodIntegral {
			warningf(c.App.ErrWriter, "confidence matching always aggregates costs directly")
		}
		cfg := job.MatchConfig(job.Confidence.Window)
		cfg.ConfidenceRatio = job.Confidence.Ratio
		dm, mask, err := stereo.MatchWithConfidence(left, right, cfg)
		return pair, dm, mask, err
	}
	dm, err := pipeline.Match(job, left, right, job.Passes[0].Window)
	return pair, dm, nil, err
}

// MatchAction computes and writes one disparity map.
func MatchAction(c *cli.Context) error {
	for _, path := range []string{c.String(flagOutput), c.String(flagMaskOutput)} {
		if path != "" && !rimage.IsImageFile(path) {
			return errors.Errorf("cannot write %s: unsupported image format", path)
		}
	}
	job, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	pair, dm, mask, err := matchPair(c, job)
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(c.String(flagOutput), dm.ToGray(c.Int(flagScale))); err != nil {
		return err
	}
	if mask != nil && c.String(flagMaskOutput) != "" {
		if err := rimage.WriteImageToFile(c.String(flagMaskOutput), mask.ToGray()); err != nil {
			return err
		}
	}

	window := job.Passes[0].Window
	entry := report.NewEntry(job.Passes[0].Name, window, dm, mask)
	if mask != nil {
		entry.Name = job.Confidence.Name
	}
	if pair.GroundTruth != nil {
		if mask != nil {
			entry.Score(stereo.ErrorRateWithMask(dm, mask, pair.GroundTruth, job.Scoring()))
		} else {
			entry.Score(stereo.ErrorRate(dm, pair.GroundTruth, job.Scoring()))
		}
	}
	printf(c.App.Writer, "%s", report.NewSummary(entry).String())
	return nil
}

// ScoreAction scores a disparity image written earlier against ground truth.
func ScoreAction(c *cli.Context) error {
	candidateImg, err := rimage.ReadGrayFromFile(c.String(flagCandidate))
	if err != nil {
		return err
	}
	truth, err := rimage.ReadGrayFromFile(c.String(flagGroundTruth))
	if err != nil {
		return err
	}
	if !rimage.SameImgSize(candidateImg, truth) {
		warningf(c.App.ErrWriter, "candidate is %v but ground truth is %v, scoring the overlap",
			sizeOf(candidateImg), sizeOf(truth))
	}
	candidate := stereo.NewDisparityMapFromGray(candidateImg, c.Float64(flagScale))
	scoring := stereo.Scoring{Scale: c.Float64(flagTruthScale), Tolerance: c.Int(flagTolerance)}

	if c.String(flagMask) == "" {
		printf(c.App.Writer, "error rate: %.4f", stereo.ErrorRate(candidate, truth, scoring))
		return nil
	}
	maskImg, err := rimage.ReadGrayFromFile(c.String(flagMask))
	if err != nil {
		return err
	}
	mask := stereo.NewConfidenceMaskFromGray(maskImg)
	printf(c.App.Writer, "error rate: %.4f", stereo.ErrorRateWithMask(candidate, mask, truth, scoring))
	printf(c.App.Writer, "effective pixels: %d", mask.Count())
	return nil
}

// DepthAction matches a pair and writes the recovered points.
func DepthAction(c *cli.Context) error {
	job, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	pair, dm, mask, err := matchPair(c, job)
	if err != nil {
		return err
	}
	cam := stereo.CameraParameters{
		Baseline:    c.Float64(flagBaseline),
		FocalLength: c.Float64(flagFocal),
		PrincipalX:  float64(pair.Left.Bounds().Dx()) / 2,
		PrincipalY:  float64(pair.Left.Bounds().Dy()) / 2,
	}
	if c.IsSet(flagPrincipalX) {
		cam.PrincipalX = c.Float64(flagPrincipalX)
	}
	if c.IsSet(flagPrincipalY) {
		cam.PrincipalY = c.Float64(flagPrincipalY)
	}
	cloud, err := pointcloud.FromDisparity(dm, cam, mask, pair.Left)
	if err != nil {
		return err
	}
	if err := pointcloud.WriteToFile(c.String(flagOutput), cloud); err != nil {
		return err
	}
	meta := cloud.MetaData()
	printf(c.App.Writer, "wrote %d points to %s", cloud.Size(), c.String(flagOutput))
	if cloud.Size() > 0 {
		printf(c.App.Writer, "depth range %.3f to %.3f", meta.MinZ, meta.MaxZ)
	}
	return nil
}

// SweepAction scores every window size concurrently.
func SweepAction(c *cli.Context) error {
	job, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	windows := c.IntSlice(flagWindows)
	for _, w := range windows {
		if err := stereo.NewWindow(w).Validate(); err != nil {
			return err
		}
	}
	pair, err := pipeline.LoadPair(job)
	if err != nil {
		return err
	}
	ctx := actionContext(c)
	left, right, err := pipeline.Sources(ctx, job, pair)
	if err != nil {
		return err
	}

	maps := make([]*stereo.DisparityMap, len(windows))
	fs := make([]utils.FloatFunc, 0, len(windows))
	for i, w := range windows {
		i, w := i, w
		fs = append(fs, func(ctx context.Context) (float64, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			dm, err := pipeline.Match(job, left, right, w)
			if err != nil {
				return 0, err
			}
			maps[i] = dm
			return stereo.ErrorRate(dm, pair.GroundTruth, job.Scoring()), nil
		})
	}
	elapsed, rates, err := utils.GetInParallel(ctx, fs)
	if err != nil {
		return err
	}
	newLogger(c).CDebugf(ctx, "swept %d windows in %v", len(windows), elapsed)

	summary := report.NewSummary()
	for i, w := range windows {
		entry := report.NewEntry(fmt.Sprintf("sad%d", w), w, maps[i], nil)
		entry.Score(rates[i])
		summary.Add(entry)
	}
	printf(c.App.Writer, "%s", summary.String())
	if best := bestWindow(summary); best != nil {
		printf(c.App.Writer, "best window %dx%d with error rate %.4f", best.Window, best.Window, best.ErrorRate)
	}

	if path := c.String(flagPlot); path != "" {
		if err := report.PlotErrorRates(path, summary); err != nil {
			return err
		}
	}
	if path := c.String(flagReport); path != "" {
		if err := report.WriteJSON(path, summary); err != nil {
			return err
		}
	}
	return nil
}

func bestWindow(s *report.Summary) *report.Entry {
	var best *report.Entry
	for i := range s.Entries {
		if e := &s.Entries[i]; best == nil || e.ErrorRate < best.ErrorRate {
			best = e
		}
	}
	return best
}

// ReportAction prints a summary written by run or sweep, and can chart it again.
func ReportAction(c *cli.Context) error {
	summary, err := report.ReadJSON(c.String(flagInput))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary.String())
	if !summary.CreatedAt.IsZero() {
		printf(c.App.Writer, "created %s", summary.CreatedAt.Format(time.RFC3339))
	}
	if path := c.String(flagPlot); path != "" {
		return report.PlotErrorRates(path, summary)
	}
	return nil
}

// VersionAction prints the module version and the stereo relevant dependencies.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		printf(c.App.Writer, "%s", info.String())
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	version := "?"
	if rev, ok := settings["vcs.revision"]; ok && len(rev) >= 8 {
		version = rev[:8]
		if settings["vcs.modified"] == "true" {
			version += "+"
		}
	}
	printf(c.App.Writer, "version %s, go %s", version, info.GoVersion)
	return nil
}

// sizeOf is used in messages about mismatched inputs.
func sizeOf(img image.Image) image.Point {
	return img.Bounds().Size()
}
