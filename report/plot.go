package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/stereo/rimage"
)

// PlotErrorRates draws error rate against window size, one line for plain
// passes and one for confidence passes. Unscored entries are skipped. The
// image format follows the extension of path (png, svg, pdf, ...).
func PlotErrorRates(path string, s *Summary) error {
	p := plot.New()
	p.Title.Text = "Disparity error rate"
	p.X.Label.Text = "window size"
	p.Y.Label.Text = "error rate"
	p.Y.Min = 0
	p.Legend.Top = true

	series := map[bool]plotter.XYs{}
	for _, e := range s.Entries {
		if e.Scored {
			series[e.Confidence] = append(series[e.Confidence], plotter.XY{X: float64(e.Window), Y: e.ErrorRate})
		}
	}
	if len(series) == 0 {
		return errors.New("no scored entries to plot")
	}
	for i, confidence := range []bool{false, true} {
		pts, ok := series[confidence]
		if !ok {
			continue
		}
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return errors.Wrap(err, "cannot build plot series")
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		name := "winner take all"
		if confidence {
			name = "confidence"
		}
		p.Legend.Add(fmt.Sprintf("%s (%d)", name, len(pts)), line, points)
	}
	p.Add(plotter.NewGrid())

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	return nil
}
