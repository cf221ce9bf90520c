// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package plots collects the metrics of a training session as plot points, saves and loads them, and
// renders them as PNG images.
package plots

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/hessiangcn/hessiangcn/gcn"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Metric types, used to group metrics in the same chart.
const (
	MetricTypeLoss     = "loss"
	MetricTypeAccuracy = "accuracy"
)

// Point is one metric measured at one epoch. It is used to save/load plots.
type Point struct {
	// MetricName of this point, e.g. "Train: loss".
	MetricName string

	// Short name, e.g. "T/loss".
	Short string

	// MetricType is MetricTypeLoss or MetricTypeAccuracy.
	MetricType string

	// Step is the epoch the metric was measured.
	Step float64

	// Value is the metric captured.
	Value float64
}

// EpochPoints converts an epoch record to its 4 points. Non-finite values are skipped.
func EpochPoints(r gcn.EpochRecord) []Point {
	step := float64(r.Epoch)
	points := make([]Point, 0, 4)
	for _, split := range []struct {
		name, short string
		metrics     gcn.Metrics
	}{{"Train", "T", r.Train}, {"Validation", "V", r.Val}} {
		for _, m := range []struct {
			metricType string
			value      float64
		}{{MetricTypeLoss, split.metrics.Loss}, {MetricTypeAccuracy, split.metrics.Accuracy}} {
			if math.IsNaN(m.value) || math.IsInf(m.value, 0) {
				continue
			}
			points = append(points, Point{
				MetricName: fmt.Sprintf("%s: %s", split.name, m.metricType),
				Short:      fmt.Sprintf("%s/%s", split.short, m.metricType),
				MetricType: m.metricType,
				Step:       step,
				Value:      m.value,
			})
		}
	}
	return points
}

// LoadPoints parses all plot points saved in the given file.
func LoadPoints(filePath string) ([]Point, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plots file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	points, err := DecodePoints(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "plots file %q", filePath)
	}
	return points, nil
}

// DecodePoints reads a stream of JSON encoded points.
func DecodePoints(r io.Reader) ([]Point, error) {
	dec := json.NewDecoder(r)
	var points []Point
	for {
		var point Point
		err := dec.Decode(&point)
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "decoding plot points")
		}
		points = append(points, point)
	}
}

// SavePoints writes the points to filePath, one JSON object per line.
func SavePoints(filePath string, points []Point) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create plots file %q", filePath)
	}
	enc := json.NewEncoder(f)
	for _, point := range points {
		if err = enc.Encode(point); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to encode point %v", point)
		}
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing plots file %q", filePath)
	}
	klog.V(1).Infof("saved %d plot points to %q", len(points), filePath)
	return nil
}

// Points is a collection of Point objects organized by their Step value.
type Points map[float64][]Point

// NewPoints creates a Points object from a collection of individual points.
func NewPoints(rawPoints []Point) Points {
	points := make(Points)
	points.AddPoints(rawPoints...)
	return points
}

// AddPoints appends the points given.
func (points Points) AddPoints(rawPoints ...Point) {
	for _, p := range rawPoints {
		points[p.Step] = append(points[p.Step], p)
	}
}

// OnEpoch adds the points of the epoch record. It can be used as the hook of gcn.Trainer.Run.
func (points Points) OnEpoch(r gcn.EpochRecord) {
	points.AddPoints(EpochPoints(r)...)
}

// Steps returns the steps with points, sorted.
func (points Points) Steps() []float64 {
	return slices.Sorted(maps.Keys(points))
}

// Extract converts Points back to a list of individual points, sorted by step.
func (points Points) Extract() []Point {
	var rawPoints []Point
	for _, step := range points.Steps() {
		rawPoints = append(rawPoints, points[step]...)
	}
	return rawPoints
}

// MetricsNames returns the names of the metrics in the collection, sorted by their type and then by name.
func (points Points) MetricsNames() []string {
	nameToType := make(map[string]string)
	for _, stepPoints := range points {
		for _, p := range stepPoints {
			nameToType[p.MetricName] = p.MetricType
		}
	}
	names := slices.Sorted(maps.Keys(nameToType))
	sort.SliceStable(names, func(i, j int) bool {
		return nameToType[names[i]] < nameToType[names[j]]
	})
	return names
}

// Series returns the (step, value) pairs of one metric, sorted by step.
func (points Points) Series(metricName string) (steps, values []float64) {
	for _, step := range points.Steps() {
		for _, p := range points[step] {
			if p.MetricName == metricName {
				steps = append(steps, step)
				values = append(values, p.Value)
			}
		}
	}
	return
}

// TableForMetrics returns a table with the Step in the first column, followed by one column per metric.
// If metrics is empty, all metrics are included.
func (points Points) TableForMetrics(metrics ...string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if len(metrics) == 0 {
		metrics = points.MetricsNames()
	}
	table.Headers(append([]string{"Epoch"}, metrics...)...)
	for _, step := range points.Steps() {
		row := make([]string, 1+len(metrics))
		row[0] = fmt.Sprintf("%.0f", step)
		for _, pt := range points[step] {
			if idx := slices.Index(metrics, pt.MetricName); idx != -1 {
				row[idx+1] = fmt.Sprintf("%.4f", pt.Value)
			}
		}
		table.Row(row...)
	}
	return table.String()
}

// String implements fmt.Stringer.
func (points Points) String() string {
	return points.TableForMetrics()
}
