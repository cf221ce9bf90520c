// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"math"
	"math/rand/v2"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
)

// GraphConvolution is one graph convolution: Op·(X·W) + b.
type GraphConvolution struct {
	InFeatures, OutFeatures int
	Weights, Bias           *context.Variable
}

// NewGraphConvolution creates the weights (and bias, if requested) of a graph convolution in the current
// scope of ctx, drawn from U(-1/√out, 1/√out) with rng.
func NewGraphConvolution(ctx *context.Context, rng *rand.Rand, inFeatures, outFeatures int, bias bool) *GraphConvolution {
	if inFeatures <= 0 || outFeatures <= 0 {
		Panicf("NewGraphConvolution(in=%d, out=%d): dimensions must be positive", inFeatures, outFeatures)
	}
	stdv := 1.0 / math.Sqrt(float64(outFeatures))
	layer := &GraphConvolution{InFeatures: inFeatures, OutFeatures: outFeatures}
	layer.Weights = ctx.VariableWithValue("weights",
		tensors.FromFlatDataAndDimensions(uniform(rng, inFeatures*outFeatures, stdv), inFeatures, outFeatures))
	if bias {
		layer.Bias = ctx.VariableWithValue("bias",
			tensors.FromFlatDataAndDimensions(uniform(rng, outFeatures, stdv), outFeatures))
	}
	return layer
}

func uniform(rng *rand.Rand, n int, limit float64) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float32((2*rng.Float64() - 1) * limit)
	}
	return values
}

// Forward returns Op·(x·W) + b, with x shaped [numNodes, InFeatures].
func (l *GraphConvolution) Forward(x *Node, op SparseNodes) *Node {
	g := x.Graph()
	if x.Rank() != 2 || x.Shape().Dimensions[1] != l.InFeatures {
		Panicf("GraphConvolution expects input shaped [numNodes, %d], got %s", l.InFeatures, x.Shape())
	}
	support := Dot(x, l.Weights.ValueGraph(g))
	output := SpMM(op, support)
	if l.Bias != nil {
		output = Add(output, Reshape(l.Bias.ValueGraph(g), 1, l.OutFeatures))
	}
	return output
}
