package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/willbeason/progresa/pkg/analysis"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	FigureExt = ".png"

	histogramBins = 10
)

var (
	figureWidth  = 6 * vg.Inch
	figureHeight = 4 * vg.Inch
)

// WriteFigures draws every panel of report which has a plot kind into dir and
// returns the paths written. Groups with an undefined mean are not drawn.
func WriteFigures(dir string, report *analysis.Report) ([]string, error) {
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var paths []string
	for _, r := range report.Results {
		for _, panel := range r.Panels {
			p, err := Figure(panel)
			if err != nil {
				return paths, fmt.Errorf("drawing %q: %w", panel.Name, err)
			}
			if p == nil {
				continue
			}

			path := filepath.Join(dir, panel.Name+FigureExt)
			err = p.Save(figureWidth, figureHeight, path)
			if err != nil {
				return paths, fmt.Errorf("saving %q: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// Figure draws one panel. It returns nil if the panel has no plot kind or no
// group to draw.
func Figure(panel analysis.Panel) (*plot.Plot, error) {
	switch panel.Plot {
	case analysis.Scatter:
		return scatter(panel)
	case analysis.Histogram:
		return histogram(panel)
	default:
		return nil, nil
	}
}

func scatter(panel analysis.Panel) (*plot.Plot, error) {
	var xys plotter.XYs
	for _, g := range panel.Groups {
		if math.IsNaN(g.Mean) {
			continue
		}
		xys = append(xys, plotter.XY{X: g.Key, Y: g.Mean})
	}
	if len(xys) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs. mean %s", panel.By, panel.Outcome)
	p.X.Label.Text = panel.By
	p.Y.Label.Text = "mean " + panel.Outcome
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	p.Add(s)
	return p, nil
}

func histogram(panel analysis.Panel) (*plot.Plot, error) {
	var values plotter.Values
	for _, g := range panel.Groups {
		if !math.IsNaN(g.Mean) {
			values = append(values, g.Mean)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = "Histogram - " + panel.Name
	p.X.Label.Text = "mean " + panel.Outcome
	p.Y.Label.Text = "count of " + panel.By

	h, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return nil, err
	}
	p.Add(h)

	// Mark the mean of the group means.
	mean := stat.Mean(values, nil)
	top := 0.0
	for _, bin := range h.Bins {
		top = math.Max(top, bin.Weight)
	}
	line, err := plotter.NewLine(plotter.XYs{{X: mean, Y: 0}, {X: mean, Y: top}})
	if err != nil {
		return nil, err
	}
	line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	line.Width = vg.Points(2)
	line.Color = color.RGBA{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF}
	p.Add(line)
	return p, nil
}
