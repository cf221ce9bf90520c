// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/hessiangcn/hessiangcn/gcn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestContext() *context.Context {
	ctx := context.New()
	ctx.SetParam("x", 11.0)
	ctx.SetParam("y", 7)
	ctx.SetParam("z", false)
	ctx.SetParam("s", "foo")
	ctx.SetParam("list_int", []int{})
	ctx.SetParam("list_float", []float64{})
	ctx.SetParam("list_str", []string{})
	return ctx
}

func TestParseContextSettings(t *testing.T) {
	ctx := createTestContext()

	paramsSet, err := ParseContextSettings(ctx, "x=13;/a/z=true;/a/b/y=3;s=bar;list_int=1,3,1_000;list_float=0.1,3e3;list_str=a,b;")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "/a/z", "/a/b/y", "s", "list_int", "list_float", "list_str"}, paramsSet)
	assert.Equal(t, 13.0, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, 7, context.GetParamOr(ctx, "y", 0))
	assert.Equal(t, 3, context.GetParamOr(ctx.In("a").In("b"), "y", 0))
	assert.False(t, context.GetParamOr(ctx, "z", true))
	assert.True(t, context.GetParamOr(ctx.In("a"), "z", false))
	assert.Equal(t, "bar", context.GetParamOr(ctx, "s", ""))
	assert.Equal(t, []int{1, 3, 1000}, context.GetParamOr(ctx, "list_int", []int{}))
	assert.Equal(t, []float64{0.1, 3e3}, context.GetParamOr(ctx, "list_float", []float64{}))
	assert.Equal(t, []string{"a", "b"}, context.GetParamOr(ctx, "list_str", []string{}))

	modified := SprintModifiedContextSettings(ctx, append(paramsSet, "x"))
	assert.Equal(t, 1, strings.Count(modified, `"x"`))

	for _, bad := range []string{
		"q=3",       // Unknown parameter.
		"y=3.14",    // Wrong type.
		"a/abc=3",   // Relative scope.
		"x",         // No value.
		"x=1=2",     // Two values.
		"z=maybe",   // Not a bool.
		"list_int=1,a",
	} {
		_, err = ParseContextSettings(ctx, bad)
		assert.Error(t, err, "setting %q", bad)
	}
}

func TestParseContextSettingsFile(t *testing.T) {
	ctx := createTestContext()
	filePath := filepath.Join(t.TempDir(), "settings.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("# Comment\nx=2.5\n\ny=1_000;s=baz\n"), 0o644))
	paramsSet, err := ParseContextSettings(ctx, "file:"+filePath+";z=true")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "s", "z"}, paramsSet)
	assert.Equal(t, 2.5, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, 1000, context.GetParamOr(ctx, "y", 0))

	_, err = ParseContextSettings(ctx, "file:"+filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestParseValueAs(t *testing.T) {
	v, err := ParseValueAs(int32(0), "12")
	require.NoError(t, err)
	assert.Equal(t, int32(12), v)
	v, err = ParseValueAs(float32(0), "0.5")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), v)
	_, err = ParseValueAs(struct{}{}, "1")
	assert.Error(t, err)
}

func TestEpochPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewEpochPrinter(&buf)
	p.OnEpoch(gcn.EpochRecord{
		Epoch:    7,
		Train:    gcn.Metrics{Loss: 1.94591, Accuracy: 0.14286},
		Val:      gcn.Metrics{Loss: 1.9454, Accuracy: 0.15667},
		Duration: 12345 * time.Microsecond,
	})
	p.PrintReport(&gcn.Report{Total: 6123400 * time.Microsecond, Test: gcn.Metrics{Loss: 0.70312, Accuracy: 0.812}})
	want := "Epoch: 0007 loss_train: 1.9459 acc_train: 0.1429 loss_val: 1.9454 acc_val: 0.1567 time: 0.0123s\n" +
		"Optimization Finished!\n" +
		"Total time elapsed: 6.1234s\n" +
		"Test set results: loss= 0.7031 accuracy= 0.8120\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567891*time.Nanosecond))
	assert.Equal(t, "12.3ms", FormatDuration(12345678*time.Nanosecond))
	assert.Equal(t, "999ns", FormatDuration(999*time.Nanosecond))
	assert.Equal(t, "0s", FormatDuration(0))
}

func TestSummaryTable(t *testing.T) {
	report := &gcn.Report{
		Epochs: []gcn.EpochRecord{{Epoch: 1}, {Epoch: 2, Train: gcn.Metrics{Loss: 0.5, Accuracy: 1}}},
		Total:  2 * time.Second,
		Test:   gcn.Metrics{Loss: 0.25, Accuracy: 0.75},
	}
	table := SummaryTable(Summary{Dataset: "cora", Backend: "go", NumNodes: 2708, NumParameters: 45984, Report: report})
	for _, want := range []string{"cora", "2,708", "45,984", "loss=0.5000 acc=1.0000", "loss=0.2500 acc=0.7500", "1s"} {
		assert.Contains(t, table, want)
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pBar := newProgressBar(3, &buf)
	for epoch := 1; epoch <= 3; epoch++ {
		pBar.OnEpoch(gcn.EpochRecord{Epoch: epoch, Train: gcn.Metrics{Loss: 0.5}, Duration: time.Millisecond})
	}
	pBar.Done()
	assert.Contains(t, buf.String(), "3 of 3")
	assert.Contains(t, buf.String(), "loss=0.5000")
}
