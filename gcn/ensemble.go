// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"math/rand/v2"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
)

// Ensemble combines a branch propagating over the normalized adjacency with a branch propagating over the
// Hessian operator.
type Ensemble struct {
	Adjacency, Hessian *Branch
	Hidden             int
}

// NewEnsemble creates all variables of the model under the "gcn" scope of ctx, using the hyperparameters
// of ctx (ParamHidden, ParamDropout, ParamSeed).
//
// Initial values are drawn from a generator seeded with ParamSeed, so they don't depend on anything else.
func NewEnsemble(ctx *context.Context, inFeatures int) *Ensemble {
	hidden := context.GetParamOr(ctx, ParamHidden, 16)
	dropoutRate := context.GetParamOr(ctx, ParamDropout, 0.5)
	seed := context.GetParamOr(ctx, ParamSeed, 23)
	if hidden <= 0 {
		Panicf("%q must be positive, got %d", ParamHidden, hidden)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	ctx = ctx.In("gcn")
	return &Ensemble{
		Adjacency: NewBranch(ctx.In("adjacency"), rng, inFeatures, hidden, dropoutRate),
		Hessian:   NewBranch(ctx.In("hessian"), rng, inFeatures, hidden, dropoutRate),
		Hidden:    hidden,
	}
}

// Width of the output: the concatenation of both branches.
func (e *Ensemble) Width() int { return 2 * e.Hidden }

// Forward returns the log-probabilities shaped [numNodes, 2·hidden]. Both branches run in the same mode.
func (e *Ensemble) Forward(ctx *context.Context, mode Mode, x *Node, adjacency, hessian SparseNodes) *Node {
	ctx = ctx.In("gcn")
	a := e.Adjacency.Forward(ctx.In("adjacency"), mode, x, adjacency)
	h := e.Hessian.Forward(ctx.In("hessian"), mode, x, hessian)
	return LogSoftmax(Concatenate([]*Node{a, h}, -1), -1)
}

// Variables returns the trainable variables of the model.
func (e *Ensemble) Variables() []*context.Variable {
	var vars []*context.Variable
	for _, b := range []*Branch{e.Adjacency, e.Hessian} {
		for _, l := range []*GraphConvolution{b.Layer1, b.Layer2} {
			vars = append(vars, l.Weights)
			if l.Bias != nil {
				vars = append(vars, l.Bias)
			}
		}
	}
	return vars
}

// NumParameters returns the number of scalars in the trainable variables.
func (e *Ensemble) NumParameters() int {
	var n int
	for _, v := range e.Variables() {
		n += v.Shape().Size()
	}
	return n
}
