// Package cli contains the stereo command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	debugFlag = "debug"

	flagConfig      = "config"
	flagInput       = "input"
	flagOutput      = "output"
	flagLeft        = "left"
	flagRight       = "right"
	flagGroundTruth = "ground-truth"
	flagWindow      = "window"
	flagWindows     = "windows"
	flagRankWindow  = "rank-window"
	flagHalfOpen    = "half-open"
	flagMin         = "min-disparity"
	flagMax         = "max-disparity"
	flagMethod      = "method"
	flagConfidence  = "confidence"
	flagRatio       = "ratio"
	flagMaskOutput  = "mask-output"
	flagScale       = "display-scale"
	flagCandidate   = "candidate"
	flagMask        = "mask"
	flagTruthScale  = "ground-truth-scale"
	flagTolerance   = "tolerance"
	flagBaseline    = "baseline"
	flagFocal       = "focal-length"
	flagPrincipalX  = "principal-x"
	flagPrincipalY  = "principal-y"
	flagPlot        = "plot"
	flagReport      = "report"
)

func pairFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagLeft, Aliases: []string{"l"}, Usage: "left image `FILE`", Required: true},
		&cli.StringFlag{Name: flagRight, Aliases: []string{"r"}, Usage: "right image `FILE`", Required: true},
		&cli.IntFlag{Name: flagRankWindow, Value: 5, Usage: "rank transform window size, 0 to match raw intensities"},
		&cli.IntFlag{Name: flagMin, Value: 0, Usage: "smallest disparity searched"},
		&cli.IntFlag{Name: flagMax, Value: 63, Usage: "largest disparity searched"},
		&cli.BoolFlag{Name: flagHalfOpen, Usage: "use windows one pixel short on the trailing edge"},
	}
}

func matchFlags() []cli.Flag {
	return append(pairFlags(),
		&cli.IntFlag{Name: flagWindow, Aliases: []string{"w"}, Value: 3, Usage: "matching window size"},
		&cli.StringFlag{Name: flagMethod, Value: "brute", Usage: "cost aggregation, brute or integral"},
		&cli.BoolFlag{Name: flagConfidence, Usage: "reject ambiguous matches with the PKRN test"},
		&cli.Float64Flag{Name: flagRatio, Usage: "largest best/second-best cost ratio trusted (default 0.5)"},
	)
}

var app = &cli.App{
	Name:            "stereo",
	Usage:           "compute and evaluate disparity maps of rectified stereo pairs",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "run a full evaluation job",
			UsageText: "stereo run --config job.json",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagConfig,
					Aliases:  []string{"c"},
					Usage:    "load the job from `FILE`",
					Required: true,
				},
			},
			Action: RunAction,
		},
		{
			Name:  "rank",
			Usage: "rank transform an image",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Usage: "input image `FILE`", Required: true},
				&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "output image `FILE`", Required: true},
				&cli.IntFlag{Name: flagWindow, Aliases: []string{"w"}, Value: 5, Usage: "window size"},
				&cli.BoolFlag{Name: flagHalfOpen, Usage: "use a window one pixel short on the trailing edge"},
			},
			Action: RankAction,
		},
		{
			Name:  "match",
			Usage: "compute a disparity map",
			Flags: append(matchFlags(),
				&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "disparity image `FILE`", Required: true},
				&cli.StringFlag{Name: flagMaskOutput, Usage: "confidence mask image `FILE`"},
				&cli.IntFlag{Name: flagScale, Value: 4, Usage: "multiply disparities by this when writing"},
				&cli.StringFlag{Name: flagGroundTruth, Usage: "score against ground truth `FILE`"},
				&cli.Float64Flag{Name: flagTruthScale, Value: 4, Usage: "ground truth intensity per pixel of disparity"},
				&cli.IntFlag{Name: flagTolerance, Value: 1, Usage: "largest disparity error counted as correct"},
			),
			Action: MatchAction,
		},
		{
			Name:  "score",
			Usage: "compare a disparity image with ground truth",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagCandidate, Usage: "disparity image `FILE`", Required: true},
				&cli.StringFlag{Name: flagGroundTruth, Usage: "ground truth `FILE`", Required: true},
				&cli.StringFlag{Name: flagMask, Usage: "only count errors where this mask image is nonzero"},
				&cli.Float64Flag{Name: flagScale, Value: 4, Usage: "candidate intensity per pixel of disparity"},
				&cli.Float64Flag{Name: flagTruthScale, Value: 4, Usage: "ground truth intensity per pixel of disparity"},
				&cli.IntFlag{Name: flagTolerance, Value: 1, Usage: "largest disparity error counted as correct"},
			},
			Action: ScoreAction,
		},
		{
			Name:  "depth",
			Usage: "back-project a stereo pair into a point cloud",
			Flags: append(matchFlags(),
				&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "point cloud `FILE` (.pcd or .ply)", Required: true},
				&cli.Float64Flag{Name: flagBaseline, Usage: "distance between the cameras", Required: true},
				&cli.Float64Flag{Name: flagFocal, Usage: "focal length in pixels", Required: true},
				&cli.Float64Flag{Name: flagPrincipalX, Usage: "principal point column, defaults to the image centre"},
				&cli.Float64Flag{Name: flagPrincipalY, Usage: "principal point row, defaults to the image centre"},
			),
			Action: DepthAction,
		},
		{
			Name:  "sweep",
			Usage: "score a range of window sizes",
			Flags: append(pairFlags(),
				&cli.StringFlag{Name: flagGroundTruth, Usage: "ground truth `FILE`", Required: true},
				&cli.IntSliceFlag{Name: flagWindows, Value: cli.NewIntSlice(3, 5, 9, 15), Usage: "window sizes to try"},
				&cli.StringFlag{Name: flagMethod, Value: "integral", Usage: "cost aggregation, brute or integral"},
				&cli.Float64Flag{Name: flagTruthScale, Value: 4, Usage: "ground truth intensity per pixel of disparity"},
				&cli.IntFlag{Name: flagTolerance, Value: 1, Usage: "largest disparity error counted as correct"},
				&cli.StringFlag{Name: flagPlot, Usage: "write an error rate chart to `FILE`"},
				&cli.StringFlag{Name: flagReport, Usage: "write a JSON report to `FILE`"},
			),
			Action: SweepAction,
		},
		{
			Name:      "report",
			Usage:     "print a saved JSON report",
			UsageText: "stereo report --input summary.json [--plot rates.png]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Usage: "JSON report `FILE`", Required: true},
				&cli.StringFlag{Name: flagPlot, Usage: "write an error rate chart to `FILE`"},
			},
			Action: ReportAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
