// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/pkg/errors"
)

// Operator is a square sparse propagation operator (normalized adjacency or Hessian) held as tensors,
// ready to be fed to a graph: row and column indices shaped Int64[nnz, 1] and values shaped Float32[nnz, 1].
type Operator struct {
	NumNodes, NNZ int
	Rows, Cols    *tensors.Tensor
	Values        *tensors.Tensor
}

// NewOperator converts a matrix in coordinate form to an Operator.
func NewOperator(coo *spmat.COO) (*Operator, error) {
	if coo.NumRows != coo.NumCols {
		return nil, errors.Wrapf(spmat.ErrNotSquare, "operator shaped %dx%d", coo.NumRows, coo.NumCols)
	}
	if err := coo.Validate(); err != nil {
		return nil, err
	}
	nnz := coo.NNZ()
	if nnz == 0 {
		return nil, errors.Errorf("operator over %d nodes has no non-zero entries", coo.NumRows)
	}
	return &Operator{
		NumNodes: coo.NumRows,
		NNZ:      nnz,
		Rows:     tensors.FromFlatDataAndDimensions(coo.Rows, nnz, 1),
		Cols:     tensors.FromFlatDataAndDimensions(coo.Cols, nnz, 1),
		Values:   tensors.FromFlatDataAndDimensions(coo.Values, nnz, 1),
	}, nil
}

// Args returns the tensors to pass to an executor, in the order expected by SparseFromNodes.
func (op *Operator) Args() []any {
	return []any{op.Rows, op.Cols, op.Values}
}

// SparseNodes is an Operator inside a computation graph.
type SparseNodes struct {
	Rows, Cols, Values *Node
}

// SparseFromNodes takes the 3 nodes fed from Operator.Args.
func SparseFromNodes(nodes []*Node) SparseNodes {
	if len(nodes) != 3 {
		Panicf("a sparse operator takes 3 nodes (rows, cols, values), got %d", len(nodes))
	}
	return SparseNodes{Rows: nodes[0], Cols: nodes[1], Values: nodes[2]}
}

// SpMM multiplies the sparse operator by the dense matrix x, shaped [numNodes, features].
//
// Each non-zero (i, j, v) contributes v·x[j] to row i of the output.
func SpMM(op SparseNodes, x *Node) *Node {
	if x.Rank() != 2 {
		Panicf("SpMM requires a rank-2 operand, got shape %s", x.Shape())
	}
	numNodes, numFeatures := x.Shape().Dimensions[0], x.Shape().Dimensions[1]
	nnz := op.Values.Shape().Dimensions[0]
	gathered := Gather(x, op.Cols)
	weights := ConvertDType(op.Values, x.DType())
	weighted := Mul(gathered, BroadcastToDims(weights, nnz, numFeatures))
	// Rows repeat: indices are not unique, and the contributions to a row are summed.
	return Scatter(op.Rows, weighted, shapes.Make(x.DType(), numNodes, numFeatures), false, false)
}
