// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"math/rand/v2"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// Branch is a 2-layer graph convolutional network: in → hidden → hidden.
//
// The second layer keeps the hidden width and has no activation: the ensemble concatenates the outputs of
// its branches and applies the log-softmax.
type Branch struct {
	Layer1, Layer2 *GraphConvolution
	DropoutRate    float64
}

// NewBranch creates the variables of a branch under the current scope of ctx.
func NewBranch(ctx *context.Context, rng *rand.Rand, inFeatures, hidden int, dropoutRate float64) *Branch {
	if dropoutRate < 0 || dropoutRate >= 1 {
		Panicf("dropout rate must be in [0, 1), got %g", dropoutRate)
	}
	return &Branch{
		Layer1:      NewGraphConvolution(ctx.In("layer_1"), rng, inFeatures, hidden, true),
		Layer2:      NewGraphConvolution(ctx.In("layer_2"), rng, hidden, hidden, true),
		DropoutRate: dropoutRate,
	}
}

// Forward returns the branch output shaped [numNodes, hidden].
func (b *Branch) Forward(ctx *context.Context, mode Mode, x *Node, op SparseNodes) *Node {
	h := activations.Relu(b.Layer1.Forward(x, op))
	h = Dropout(ctx, mode, h, b.DropoutRate)
	return b.Layer2.Forward(h, op)
}

// Dropout zeroes each element of x with probability rate and scales the kept ones by 1/(1-rate).
// It is the identity in Evaluation mode or if rate is 0.
//
// The mask is drawn from the random number generator state of ctx.
func Dropout(ctx *context.Context, mode Mode, x *Node, rate float64) *Node {
	if mode != Training || rate == 0 {
		return x
	}
	g := x.Graph()
	rnd := ctx.RandomUniform(g, x.Shape())
	keep := GreaterOrEqual(rnd, Scalar(g, x.DType(), rate))
	return Where(keep, DivScalar(x, 1-rate), ZerosLike(x))
}
