// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"slices"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split names one of the index sets.
type Split int

const (
	Train Split = iota
	Val
	Test
)

// String implements fmt.Stringer.
func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Val:
		return "val"
	case Test:
		return "test"
	}
	return "split(?)"
}

// Inputs holds everything a training session feeds to the model, as tensors.
type Inputs struct {
	NumNodes, NumFeatures, NumClasses int

	// Features shaped Float32[numNodes, numFeatures].
	Features *tensors.Tensor

	// Labels are class ids, shaped Int32[numNodes].
	Labels *tensors.Tensor

	Adjacency, Hessian *Operator

	// Indices of each split, shaped Int32[n, 1].
	Indices [3]*tensors.Tensor
}

// NewInputs converts host data to Inputs, checking all dimensions agree.
func NewInputs(features mat.Matrix, labels []int32, adjacency, hessian *spmat.COO,
	train, val, test []int) (*Inputs, error) {
	numNodes, numFeatures := features.Dims()
	if numNodes == 0 || numFeatures == 0 {
		return nil, errors.Errorf("features shaped %dx%d are empty", numNodes, numFeatures)
	}
	if len(labels) != numNodes {
		return nil, errors.Errorf("%d labels for %d nodes", len(labels), numNodes)
	}
	in := &Inputs{NumNodes: numNodes, NumFeatures: numFeatures}
	for _, l := range labels {
		if l < 0 {
			return nil, errors.Errorf("negative label %d", l)
		}
		in.NumClasses = max(in.NumClasses, int(l)+1)
	}

	var err error
	for _, op := range []struct {
		name   string
		coo    *spmat.COO
		target **Operator
	}{{"adjacency", adjacency, &in.Adjacency}, {"hessian", hessian, &in.Hessian}} {
		if op.coo.NumRows != numNodes || op.coo.NumCols != numNodes {
			return nil, errors.Errorf("%s operator shaped %dx%d, but there are %d nodes",
				op.name, op.coo.NumRows, op.coo.NumCols, numNodes)
		}
		*op.target, err = NewOperator(op.coo)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s operator", op.name)
		}
	}

	for split, indices := range [][]int{train, val, test} {
		if len(indices) == 0 {
			return nil, errors.Errorf("%s split is empty", Split(split))
		}
		if slices.Min(indices) < 0 || slices.Max(indices) >= numNodes {
			return nil, errors.Errorf("%s split has indices outside [0, %d)", Split(split), numNodes)
		}
		flat := make([]int32, len(indices))
		for i, idx := range indices {
			flat[i] = int32(idx)
		}
		in.Indices[split] = tensors.FromFlatDataAndDimensions(flat, len(flat), 1)
	}

	flat := make([]float32, numNodes*numFeatures)
	spmat.DoNonZero(features, func(i, j int, v float64) {
		flat[i*numFeatures+j] = float32(v)
	})
	in.Features = tensors.FromFlatDataAndDimensions(flat, numNodes, numFeatures)
	in.Labels = tensors.FromFlatDataAndDimensions(slices.Clone(labels), numNodes)
	return in, nil
}

// args returns the tensors in the order expected by inputNodes.
func (in *Inputs) args() []any {
	args := []any{in.Features, in.Labels}
	args = append(args, in.Adjacency.Args()...)
	args = append(args, in.Hessian.Args()...)
	for _, t := range in.Indices {
		args = append(args, t)
	}
	return args
}
