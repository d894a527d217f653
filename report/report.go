// Package report writes the results of stereo evaluation runs as tables, JSON
// and charts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"go.viam.com/stereo/rimage"
	"go.viam.com/stereo/stereo"
)

// Entry is the outcome of a single matching pass.
type Entry struct {
	Name       string `json:"name"`
	Window     int    `json:"window"`
	Confidence bool   `json:"confidence"`
	// Scored is false when no ground truth was available.
	Scored bool `json:"scored"`
	// ErrorRate is the fraction of ground truth pixels in error.
	ErrorRate float64 `json:"error_rate"`
	// EffectivePixels is the number of confident pixels, only set for confidence passes.
	EffectivePixels int `json:"effective_pixels,omitempty"`
	// Evaluated is the number of pixels the matcher could score.
	Evaluated int     `json:"evaluated"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	StdDev    float64 `json:"std_dev"`
}

// NewEntry fills an unscored Entry from a computed map. mask may be nil.
func NewEntry(name string, window int, dm *stereo.DisparityMap, mask *stereo.ConfidenceMask) Entry {
	v := dm.Valid()
	e := Entry{
		Name:       name,
		Window:     window,
		Confidence: mask != nil,
		Evaluated:  v.Dx() * v.Dy(),
	}
	if mask != nil {
		e.EffectivePixels = mask.Count()
	}
	if s, err := dm.Stats(mask); err == nil {
		e.Mean, e.Median, e.StdDev = s.Mean, s.Median, s.StdDev
	}
	return e
}

// Score records the error rate against ground truth.
func (e *Entry) Score(errorRate float64) {
	e.ErrorRate = errorRate
	e.Scored = true
}

// Summary collects the entries of one run.
type Summary struct {
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSummary returns a summary of the given entries ordered by confidence
// then window size then name.
func NewSummary(entries ...Entry) *Summary {
	s := &Summary{Entries: append([]Entry(nil), entries...), CreatedAt: time.Now()}
	s.sort()
	return s
}

// Add appends entries, keeping the summary ordered.
func (s *Summary) Add(entries ...Entry) {
	s.Entries = append(s.Entries, entries...)
	s.sort()
}

func (s *Summary) sort() {
	sort.SliceStable(s.Entries, func(i, j int) bool {
		a, b := s.Entries[i], s.Entries[j]
		if a.Confidence != b.Confidence {
			return !a.Confidence
		}
		if a.Window != b.Window {
			return a.Window < b.Window
		}
		return a.Name < b.Name
	})
}

// Find returns the entry with the given name.
func (s *Summary) Find(name string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// String renders the summary as a table.
func (s *Summary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Pass", "Window", "Error rate", "Effective pixels", "Evaluated", "Mean", "Median", "Std dev"})
	for _, e := range s.Entries {
		effective, rate := "-", "-"
		if e.Confidence {
			effective = fmt.Sprintf("%d", e.EffectivePixels)
		}
		if e.Scored {
			rate = fmt.Sprintf("%.4f", e.ErrorRate)
		}
		t.AppendRow(table.Row{
			e.Name,
			fmt.Sprintf("%dx%d", e.Window, e.Window),
			rate,
			effective,
			e.Evaluated,
			fmt.Sprintf("%.2f", e.Mean),
			fmt.Sprintf("%.2f", e.Median),
			fmt.Sprintf("%.2f", e.StdDev),
		})
	}
	return t.Render()
}

// WriteText writes the summary table to path.
func WriteText(path string, s *Summary) error {
	return writeFile(path, []byte(s.String()+"\n"))
}

// WriteJSON writes the summary as indented JSON to path.
func WriteJSON(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	return writeFile(path, append(data, '\n'))
}

// ReadJSON reads a summary written by WriteJSON.
func ReadJSON(path string) (*Summary, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read report %s", path)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "cannot parse report %s", path)
	}
	return &s, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	//nolint:gosec
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(rimage.ErrWriteFailed, "%s: %v", path, err)
	}
	return nil
}
