package report

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stereo/rimage"
	"go.viam.com/stereo/stereo"
)

func sampleSummary() *Summary {
	return NewSummary(
		Entry{Name: "sad15", Window: 15, Scored: true, ErrorRate: 0.2, Evaluated: 100, Mean: 12},
		Entry{Name: "pkrn3", Window: 3, Confidence: true, Scored: true, ErrorRate: 0.05, EffectivePixels: 40, Evaluated: 120},
		Entry{Name: "sad3", Window: 3, Scored: true, ErrorRate: 0.3, Evaluated: 120},
	)
}

func TestSummaryOrder(t *testing.T) {
	s := sampleSummary()
	var names []string
	for _, e := range s.Entries {
		names = append(names, e.Name)
	}
	test.That(t, names, test.ShouldResemble, []string{"sad3", "sad15", "pkrn3"})

	s.Add(Entry{Name: "sad9", Window: 9})
	test.That(t, s.Entries[1].Name, test.ShouldEqual, "sad9")

	e, ok := s.Find("pkrn3")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, e.EffectivePixels, test.ShouldEqual, 40)
	_, ok = s.Find("nope")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNewEntry(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 12, 6))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	src := stereo.NewGraySource(img)
	cfg := stereo.MatchConfig{MaxDisparity: 2, Window: stereo.NewWindow(3)}

	dm, err := stereo.MatchDisparity(src, src, cfg)
	test.That(t, err, test.ShouldBeNil)
	e := NewEntry("sad3", 3, dm, nil)
	test.That(t, e.Confidence, test.ShouldBeFalse)
	test.That(t, e.Scored, test.ShouldBeFalse)
	e.Score(0.1)
	test.That(t, e.Scored, test.ShouldBeTrue)
	test.That(t, e.ErrorRate, test.ShouldEqual, 0.1)
	test.That(t, e.Evaluated, test.ShouldEqual, 8*4)
	test.That(t, e.EffectivePixels, test.ShouldEqual, 0)
	test.That(t, e.Mean, test.ShouldEqual, 0.0)

	dm, mask, err := stereo.MatchWithConfidence(src, src, cfg)
	test.That(t, err, test.ShouldBeNil)
	e = NewEntry("pkrn3", 3, dm, mask)
	test.That(t, e.Confidence, test.ShouldBeTrue)
	test.That(t, e.EffectivePixels, test.ShouldEqual, mask.Count())
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "error.txt")
	test.That(t, WriteText(path, sampleSummary()), test.ShouldBeNil)

	//nolint:gosec
	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	text := string(data)
	test.That(t, text, test.ShouldContainSubstring, "ERROR RATE")
	test.That(t, text, test.ShouldContainSubstring, "15x15")
	test.That(t, text, test.ShouldContainSubstring, "0.0500")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	// borders, header, separator and one line per entry
	test.That(t, lines, test.ShouldHaveLength, 7)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	s := sampleSummary()
	test.That(t, WriteJSON(path, s), test.ShouldBeNil)

	read, err := ReadJSON(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Entries, test.ShouldResemble, s.Entries)
	test.That(t, read.CreatedAt.Equal(s.CreatedAt), test.ShouldBeTrue)

	_, err = ReadJSON(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWriteFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	test.That(t, os.WriteFile(blocker, []byte("x"), 0o600), test.ShouldBeNil)

	err := WriteText(filepath.Join(blocker, "error.txt"), sampleSummary())
	test.That(t, errors.Is(err, rimage.ErrWriteFailed), test.ShouldBeTrue)
	err = WriteJSON(filepath.Join(blocker, "summary.json"), sampleSummary())
	test.That(t, errors.Is(err, rimage.ErrWriteFailed), test.ShouldBeTrue)
	err = PlotErrorRates(filepath.Join(blocker, "plot.png"), sampleSummary())
	test.That(t, errors.Is(err, rimage.ErrWriteFailed), test.ShouldBeTrue)
}

func TestPlotErrorRates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rates.png", "rates.svg"} {
		path := filepath.Join(dir, name)
		test.That(t, PlotErrorRates(path, sampleSummary()), test.ShouldBeNil)
		info, err := os.Stat(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
	}

	img, err := rimage.ReadImageFromFile(filepath.Join(dir, "rates.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldBeGreaterThan, 0)

	test.That(t, PlotErrorRates(filepath.Join(dir, "empty.png"), &Summary{}), test.ShouldNotBeNil)
	unscored := NewSummary(Entry{Name: "sad3", Window: 3})
	test.That(t, PlotErrorRates(filepath.Join(dir, "unscored.png"), unscored), test.ShouldNotBeNil)
	test.That(t, unscored.String(), test.ShouldContainSubstring, "| -")
}
