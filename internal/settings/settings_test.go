// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestContext() *context.Context {
	ctx := context.New()
	ctx.SetParam("epochs", 500)
	ctx.SetParam("learning_rate", 0.005)
	ctx.SetParam("dropout", 0.5)
	ctx.SetParam("fast_mode", false)
	ctx.SetParam("dataset", "cora")
	ctx.SetParam("layers", []int{})
	return ctx
}

func TestApply(t *testing.T) {
	ctx := createTestContext()
	paramsSet, err := Apply(ctx, strings.NewReader(`
epochs: 2e2
learning_rate: 1
fast_mode: true
dataset: citeseer
layers: [16, 8]
gcn:
  hessian:
    dropout: 0.25
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"dataset", "epochs", "fast_mode", "/gcn/hessian/dropout", "layers", "learning_rate"}, paramsSet)
	assert.Equal(t, 200, context.GetParamOr(ctx, "epochs", 0))
	assert.Equal(t, 1.0, context.GetParamOr(ctx, "learning_rate", 0.0))
	assert.True(t, context.GetParamOr(ctx, "fast_mode", false))
	assert.Equal(t, "citeseer", context.GetParamOr(ctx, "dataset", ""))
	assert.Equal(t, []int{16, 8}, context.GetParamOr(ctx, "layers", []int{}))
	assert.Equal(t, 0.5, context.GetParamOr(ctx, "dropout", 0.0))
	assert.Equal(t, 0.25, context.GetParamOr(ctx.In("gcn").In("hessian"), "dropout", 0.0))
}

func TestApplyErrors(t *testing.T) {
	for _, bad := range []string{
		"unknown: 1",
		"epochs: 2.5",
		"fast_mode: 1",
		"dataset: [a, b]",
		"epochs: [",
	} {
		_, err := Apply(createTestContext(), strings.NewReader(bad))
		assert.Error(t, err, "settings %q", bad)
	}

	paramsSet, err := Apply(createTestContext(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, paramsSet)
}

func TestLoadFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("epochs: 10\n"), 0o644))
	ctx := createTestContext()
	paramsSet, err := LoadFile(ctx, filePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"epochs"}, paramsSet)
	assert.Equal(t, 10, context.GetParamOr(ctx, "epochs", 0))

	_, err = LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
