// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"math"
	"math/rand/v2"
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const toyNumNodes = 12

// toyInputs builds two 6-node cliques, one per class. Node features point to their class, with a bit of
// noise drawn from a fixed seed.
func toyInputs(t *testing.T) *Inputs {
	rng := rand.New(rand.NewPCG(7, 0))
	features := mat.NewDense(toyNumNodes, 4, nil)
	labels := make([]int32, toyNumNodes)
	adjacency := spmat.NewBuilder(toyNumNodes, toyNumNodes)
	for i := range toyNumNodes {
		class := i / 6
		labels[i] = int32(class)
		features.Set(i, class, 1)
		features.Set(i, 2+rng.IntN(2), rng.Float64())
		for j := range toyNumNodes {
			if i != j && j/6 == class {
				adjacency.Set(i, j, 1)
			}
		}
	}
	adj, err := spmat.PreprocessAdj(adjacency.CSR())
	require.NoError(t, err)
	hes := spmat.Identity(toyNumNodes).COO()
	inputs, err := NewInputs(spmat.NormalizeRows(features), labels, adj, hes,
		[]int{0, 1, 6, 7}, []int{2, 3, 8, 9}, []int{4, 5, 10, 11})
	require.NoError(t, err)
	return inputs
}

func toyContext() *context.Context {
	ctx := CreateDefaultContext()
	ctx.SetParam(ParamHidden, 4)
	ctx.SetParam(ParamLearningRate, 0.05)
	return ctx
}

func TestNewInputs(t *testing.T) {
	inputs := toyInputs(t)
	assert.Equal(t, toyNumNodes, inputs.NumNodes)
	assert.Equal(t, 4, inputs.NumFeatures)
	assert.Equal(t, 2, inputs.NumClasses)
	assert.Equal(t, []int{toyNumNodes, 4}, inputs.Features.Shape().Dimensions)
	assert.Equal(t, []int{4, 1}, inputs.Indices[Test].Shape().Dimensions)
	assert.Len(t, inputs.args(), 11)

	features := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	op := spmat.Identity(3).COO()
	_, err := NewInputs(features, []int32{0, 1}, op, op, []int{0}, []int{1}, []int{2})
	assert.Error(t, err, "label count mismatch")
	_, err = NewInputs(features, []int32{0, 1, 0}, op, spmat.Identity(4).COO(), []int{0}, []int{1}, []int{2})
	assert.Error(t, err, "hessian size mismatch")
	_, err = NewInputs(features, []int32{0, 1, 0}, op, op, []int{0}, []int{1}, []int{3})
	assert.Error(t, err, "test index out of range")
	_, err = NewInputs(features, []int32{0, 1, 0}, op, op, []int{0}, nil, []int{2})
	assert.Error(t, err, "empty validation split")
}

func TestEnsembleForward(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	inputs := toyInputs(t)
	ctx := toyContext()
	ctx.RngStateFromSeed(1)
	model := NewEnsemble(ctx, inputs.NumFeatures)
	assert.Equal(t, 8, model.Width())
	// Per branch: 4x4+4 and 4x4+4.
	assert.Equal(t, 2*(20+20), model.NumParameters())

	for _, mode := range []Mode{Training, Evaluation} {
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, nodes []*Node) []*Node {
			adjacency := SparseFromNodes(nodes[1:4])
			hessian := SparseFromNodes(nodes[4:7])
			return []*Node{model.Forward(ctx, mode, nodes[0], adjacency, hessian)}
		})
		args := []any{inputs.Features}
		args = append(args, inputs.Adjacency.Args()...)
		args = append(args, inputs.Hessian.Args()...)
		output := exec.Call(args...)[0]
		require.Equal(t, []int{toyNumNodes, 8}, output.Shape().Dimensions, "mode %s", mode)
		logProbs := output.Value().([][]float32)
		for i, row := range logProbs {
			var sum float64
			for _, v := range row {
				sum += math.Exp(float64(v))
			}
			assert.InDelta(t, 1.0, sum, 1e-4, "mode %s, row %d", mode, i)
		}
	}
}

func TestDropout(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New().Checked(false)
	ctx.RngStateFromSeed(42)
	x := tensors.FromValue([][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}})

	for _, mode := range []Mode{Training, Evaluation} {
		exec := context.NewExec(backend, ctx, func(ctx *context.Context, nodes []*Node) []*Node {
			return []*Node{Dropout(ctx, mode, nodes[0], 0.5)}
		})
		got := exec.Call(x)[0].Value().([][]float32)
		for i, row := range got {
			for j, v := range row {
				want := float32(i*4 + j + 1)
				if mode == Evaluation {
					assert.Equal(t, want, v)
				} else {
					assert.True(t, v == 0 || v == 2*want, "dropout(%g) = %g", want, v)
				}
			}
		}
	}
}

func TestNewTrainerTooManyClasses(t *testing.T) {
	ctx := toyContext()
	ctx.SetParam(ParamHidden, 1)
	inputs := toyInputs(t)
	inputs.NumClasses = 3
	_, err := NewTrainer(graphtest.BuildTestBackend(), ctx, inputs)
	require.Error(t, err)
}

func runToy(t *testing.T, backend backends.Backend, ctx *context.Context, epochs int) *Report {
	trainer, err := NewTrainer(backend, ctx, toyInputs(t))
	require.NoError(t, err)
	var hooked []int
	report, err := trainer.Run(epochs, func(r EpochRecord) { hooked = append(hooked, r.Epoch) })
	require.NoError(t, err)
	require.Len(t, report.Epochs, epochs)
	require.Len(t, hooked, epochs)
	for i, epoch := range hooked {
		assert.Equal(t, i+1, epoch)
	}
	return report
}

func TestRunZeroEpochs(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	report := runToy(t, backend, toyContext(), 0)

	// A freshly initialized model with the same seed evaluates to the same test metrics.
	fresh, err := NewTrainer(backend, toyContext(), toyInputs(t))
	require.NoError(t, err)
	test, err := fresh.Evaluate(Test)
	require.NoError(t, err)
	assert.Equal(t, test, report.Test)
}

func TestRunReproducible(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	first := runToy(t, backend, toyContext(), 5)
	second := runToy(t, backend, toyContext(), 5)
	for i := range first.Epochs {
		assert.Equal(t, first.Epochs[i].Train, second.Epochs[i].Train, "epoch %d", i+1)
		assert.Equal(t, first.Epochs[i].Val, second.Epochs[i].Val, "epoch %d", i+1)
	}
	assert.Equal(t, first.Test, second.Test)

	// A different seed starts from different parameters.
	ctx := toyContext()
	ctx.SetParam(ParamSeed, 24)
	other := runToy(t, backend, ctx, 1)
	assert.NotEqual(t, first.Epochs[0].Train.Loss, other.Epochs[0].Train.Loss)
}

func TestRunLearns(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training test in short mode")
	}
	backend := graphtest.BuildTestBackend()
	ctx := toyContext()
	ctx.SetParam(ParamDropout, 0.0)
	report := runToy(t, backend, ctx, 100)
	first, last := report.Epochs[0], report.Epochs[len(report.Epochs)-1]
	assert.Less(t, last.Train.Loss, first.Train.Loss)
	assert.Less(t, last.Val.Loss, first.Val.Loss)
	assert.GreaterOrEqual(t, last.Train.Accuracy, 0.75)
	assert.GreaterOrEqual(t, report.Test.Accuracy, 0.75)
}

func TestRunFastMode(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := toyContext()
	ctx.SetParam(ParamFastMode, true)
	ctx.SetParam(ParamDropout, 0.0)
	report := runToy(t, backend, ctx, 1)

	// Without dropout, the validation metrics of the training pass equal an evaluation of the initial
	// parameters.
	fresh, err := NewTrainer(backend, toyContext(), toyInputs(t))
	require.NoError(t, err)
	val, err := fresh.Evaluate(Val)
	require.NoError(t, err)
	assert.InDelta(t, val.Loss, report.Epochs[0].Val.Loss, 1e-5)
	assert.InDelta(t, val.Accuracy, report.Epochs[0].Val.Accuracy, 1e-6)
}

func TestRunNegativeEpochs(t *testing.T) {
	trainer, err := NewTrainer(graphtest.BuildTestBackend(), toyContext(), toyInputs(t))
	require.NoError(t, err)
	_, err = trainer.Run(-1, nil)
	assert.Error(t, err)
}
