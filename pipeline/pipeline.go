// Package pipeline runs a configured stereo evaluation end to end.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/stereo/config"
	"go.viam.com/stereo/logging"
	"go.viam.com/stereo/pointcloud"
	"go.viam.com/stereo/report"
	"go.viam.com/stereo/rimage"
	"go.viam.com/stereo/stereo"
	"go.viam.com/stereo/utils"
)

// Pair is a loaded stereo pair with optional ground truth.
type Pair struct {
	Left        *image.Gray
	Right       *image.Gray
	GroundTruth *image.Gray
}

// LoadPair reads the images named by the job.
func LoadPair(job *config.Job) (*Pair, error) {
	left, err := rimage.ReadGrayFromFile(job.InputPath(job.Left))
	if err != nil {
		return nil, err
	}
	right, err := rimage.ReadGrayFromFile(job.InputPath(job.Right))
	if err != nil {
		return nil, err
	}
	if err := rimage.CheckSameSize(left, right); err != nil {
		return nil, errors.Wrap(stereo.ErrDimensionMismatch, err.Error())
	}
	pair := &Pair{Left: left, Right: right}
	if job.GroundTruth != "" {
		if pair.GroundTruth, err = rimage.ReadGrayFromFile(job.InputPath(job.GroundTruth)); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

// Sources rank transforms both images in parallel, or wraps them unchanged
// when the job disables ranking.
func Sources(ctx context.Context, job *config.Job, pair *Pair) (stereo.Source, stereo.Source, error) {
	window, ok := job.RankTransformWindow()
	if !ok {
		return stereo.NewGraySource(pair.Left), stereo.NewGraySource(pair.Right), nil
	}
	var left, right *stereo.RankImage
	_, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			var err error
			left, err = stereo.RankTransform(stereo.NewGraySource(pair.Left), window)
			return err
		},
		func(ctx context.Context) error {
			var err error
			right, err = stereo.RankTransform(stereo.NewGraySource(pair.Right), window)
			return err
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Match runs one pass with the job's matching method.
func Match(job *config.Job, left, right stereo.Source, window int) (*stereo.DisparityMap, error) {
	cfg := job.MatchConfig(window)
	if job.Method == config.MethodIntegral {
		return stereo.MatchDisparityIntegral(left, right, cfg)
	}
	return stereo.MatchDisparity(left, right, cfg)
}

// Result is everything a run computed, keyed by pass name.
type Result struct {
	Summary *report.Summary
	Maps    map[string]*stereo.DisparityMap
	// Mask is set when the job has a confidence pass.
	Mask *stereo.ConfidenceMask
}

type runner struct {
	job    *config.Job
	logger logging.Logger
	pair   *Pair

	mu     sync.Mutex
	result *Result
}

func (r *runner) record(name string, dm *stereo.DisparityMap, entry report.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Maps[name] = dm
	r.result.Summary.Add(entry)
}

func (r *runner) writeImage(name string, img image.Image) error {
	if name == "" {
		return nil
	}
	return rimage.WriteImageToFile(r.job.OutputPath(name), img)
}

func (r *runner) plainPass(left, right stereo.Source, pass config.Pass) utils.SimpleFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		dm, err := Match(r.job, left, right, pass.Window)
		if err != nil {
			return errors.Wrapf(err, "pass %s", pass.Name)
		}
		r.logger.CDebugf(ctx, "pass %s took %v", pass.Name, time.Since(start))

		entry := report.NewEntry(pass.Name, pass.Window, dm, nil)
		if r.pair.GroundTruth != nil {
			entry.Score(stereo.ErrorRate(dm, r.pair.GroundTruth, r.job.Scoring()))
		}
		if err := r.writeImage(pass.Output, dm.ToGray(r.job.DisplayScale)); err != nil {
			return err
		}
		r.logger.Infow("pass done", "pass", pass.Name, "window", pass.Window, "scored", entry.Scored, "error_rate", entry.ErrorRate)
		r.record(pass.Name, dm, entry)
		return nil
	}
}

func (r *runner) confidencePass(left, right stereo.Source, pass *config.ConfidencePass) utils.SimpleFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		cfg := r.job.MatchConfig(pass.Window)
		cfg.ConfidenceRatio = pass.Ratio
		dm, mask, err := stereo.MatchWithConfidence(left, right, cfg)
		if err != nil {
			return errors.Wrapf(err, "pass %s", pass.Name)
		}
		r.logger.CDebugf(ctx, "confidence pass %s took %v", pass.Name, time.Since(start))

		entry := report.NewEntry(pass.Name, pass.Window, dm, mask)
		if r.pair.GroundTruth != nil {
			entry.Score(stereo.ErrorRateWithMask(dm, mask, r.pair.GroundTruth, r.job.Scoring()))
		}
		if err := r.writeImage(pass.Output, dm.ToGray(r.job.DisplayScale)); err != nil {
			return err
		}
		if err := r.writeImage(pass.MaskOutput, mask.ToGray()); err != nil {
			return err
		}
		if pass.Report != "" {
			if err := report.WriteText(r.job.OutputPath(pass.Report), report.NewSummary(entry)); err != nil {
				return err
			}
		}
		r.logger.Infow("confidence pass done", "pass", pass.Name, "window", pass.Window,
			"effective_pixels", entry.EffectivePixels, "scored", entry.Scored, "error_rate", entry.ErrorRate)

		r.mu.Lock()
		r.result.Mask = mask
		r.mu.Unlock()
		r.record(pass.Name, dm, entry)
		return nil
	}
}

// cloudSource picks the map to back-project: the confidence pass when there
// is one, otherwise the first plain pass.
func (r *runner) cloudSource() (*stereo.DisparityMap, *stereo.ConfidenceMask) {
	if c := r.job.Confidence; c != nil {
		return r.result.Maps[c.Name], r.result.Mask
	}
	return r.result.Maps[r.job.Passes[0].Name], nil
}

// Run executes the job: load, rank, match every pass concurrently, score and
// write every configured output. The job must already be validated. A nil
// logger uses the global one.
func Run(ctx context.Context, job *config.Job, logger logging.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.Global()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	pair, err := LoadPair(job)
	if err != nil {
		return nil, err
	}
	if pair.GroundTruth == nil {
		logger.Warn("no ground truth configured, passes will not be scored")
	}
	logger.CDebugf(ctx, "loaded %v pair in %v", pair.Left.Bounds().Size(), time.Since(start))

	start = time.Now()
	left, right, err := Sources(ctx, job, pair)
	if err != nil {
		return nil, err
	}
	logger.CDebugf(ctx, "prepared sources in %v", time.Since(start))

	r := &runner{
		job:    job,
		logger: logger,
		pair:   pair,
		result: &Result{Summary: report.NewSummary(), Maps: map[string]*stereo.DisparityMap{}},
	}
	passes := make([]utils.SimpleFunc, 0, len(job.Passes)+1)
	for _, pass := range job.Passes {
		passes = append(passes, r.plainPass(left, right, pass))
	}
	if job.Confidence != nil {
		passes = append(passes, r.confidencePass(left, right, job.Confidence))
	}
	elapsed, err := utils.RunInParallel(ctx, passes)
	if err != nil {
		return nil, err
	}
	logger.CDebugf(ctx, "matched %d passes in %v", len(passes), elapsed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeOutputs(ctx, job, r); err != nil {
		return nil, err
	}
	return r.result, nil
}

// writeOutputs writes the summary files, plot and point cloud concurrently.
// They only read the finished result.
func writeOutputs(ctx context.Context, job *config.Job, r *runner) error {
	summary := r.result.Summary
	errs, ctx := errgroup.WithContext(ctx)
	if job.Report != "" {
		errs.Go(func() error {
			return report.WriteText(job.OutputPath(job.Report), summary)
		})
	}
	if job.Summary != "" {
		errs.Go(func() error {
			return report.WriteJSON(job.OutputPath(job.Summary), summary)
		})
	}
	if job.Plot != "" {
		if r.pair.GroundTruth == nil {
			r.logger.Warnw("skipping plot without ground truth", "plot", job.Plot)
		} else {
			errs.Go(func() error {
				return report.PlotErrorRates(job.OutputPath(job.Plot), summary)
			})
		}
	}
	if job.PointCloud != "" {
		errs.Go(func() error {
			dm, mask := r.cloudSource()
			cloud, err := pointcloud.FromDisparity(dm, *job.Camera, mask, r.pair.Left)
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := pointcloud.WriteToFile(job.OutputPath(job.PointCloud), cloud); err != nil {
				return err
			}
			r.logger.Infow("wrote point cloud", "points", cloud.Size(), "path", job.PointCloud)
			return nil
		})
	}
	return errs.Wait()
}
