// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Size of the rendered image.
var (
	Width  = 8 * vg.Inch
	Height = 8 * vg.Inch
)

// Chart creates a plot with one line per metric of the given type. It returns nil if there are no
// such metrics.
func (points Points) Chart(metricType, title string) (*plot.Plot, error) {
	var lines []any
	for _, name := range points.MetricsNames() {
		steps, values := points.Series(name)
		if len(steps) == 0 || points.metricType(name) != metricType {
			continue
		}
		xys := make(plotter.XYs, len(steps))
		for i := range steps {
			xys[i].X, xys[i].Y = steps[i], values[i]
		}
		lines = append(lines, name, xys)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = metricType
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Wrapf(err, "plotting %s", metricType)
	}
	p.Legend.Top = metricType == MetricTypeAccuracy
	return p, nil
}

func (points Points) metricType(metricName string) string {
	for _, stepPoints := range points {
		for _, p := range stepPoints {
			if p.MetricName == metricName {
				return p.MetricType
			}
		}
	}
	return ""
}

// WritePNG renders the loss and the accuracy charts, one above the other, as a PNG image.
func (points Points) WritePNG(w io.Writer) error {
	var charts [][]*plot.Plot
	for _, chart := range []struct{ metricType, title string }{
		{MetricTypeLoss, "Loss"},
		{MetricTypeAccuracy, "Accuracy"},
	} {
		p, err := points.Chart(chart.metricType, chart.title)
		if err != nil {
			return err
		}
		if p != nil {
			charts = append(charts, []*plot.Plot{p})
		}
	}
	if len(charts) == 0 {
		return errors.New("no points to plot")
	}

	img := vgimg.New(Width, Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(charts),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 4 * vg.Millimeter,
	}
	canvases := plot.Align(charts, tiles, dc)
	for row := range charts {
		charts[row][0].Draw(canvases[row][0])
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return errors.Wrap(err, "encoding PNG")
	}
	return nil
}

// SavePNG renders the charts of WritePNG to filePath.
func (points Points) SavePNG(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err = points.WritePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %q", filePath)
}
