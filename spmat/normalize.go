// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package spmat

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RowSums returns the sum of each row of a.
func RowSums(a mat.Matrix) []float64 {
	r, _ := a.Dims()
	sums := make([]float64, r)
	DoNonZero(a, func(i, _ int, v float64) { sums[i] += v })
	return sums
}

// invPow returns d^p elementwise, with infinities (from zero entries) replaced by 0.
func invPow(d []float64, p float64) []float64 {
	out := make([]float64, len(d))
	for i, v := range d {
		x := math.Pow(v, p)
		if math.IsInf(x, 0) {
			x = 0
		}
		out[i] = x
	}
	return out
}

// NormalizeAdj returns D^-1/2 · Aᵀ · D^-1/2 in coordinate form, where D is the diagonal
// matrix of row sums of a. Rows with zero degree come out as zero rows.
//
// a is expected to be already self-loop augmented, see PreprocessAdj.
func NormalizeAdj(a mat.Matrix) (*COO, error) {
	r, c := a.Dims()
	if r != c {
		return nil, errors.Wrapf(ErrNotSquare, "cannot normalize %dx%d adjacency", r, c)
	}
	dInvSqrt := invPow(RowSums(a), -0.5)
	b := NewBuilder(r, c)
	DoNonZero(a, func(i, j int, v float64) {
		// Entry (j, i) of Aᵀ.
		b.Add(j, i, dInvSqrt[j]*v*dInvSqrt[i])
	})
	return b.CSR().COO(), nil
}

// PreprocessAdj builds the adjacency propagation operator NormalizeAdj(A + I).
func PreprocessAdj(a mat.Matrix) (*COO, error) {
	withLoops, err := AddIdentity(a, 1)
	if err != nil {
		return nil, errors.WithMessage(err, "preprocessing adjacency")
	}
	return NormalizeAdj(withLoops)
}

// NormalizeRows divides each row of m by its sum. Rows summing to zero are left as zero.
func NormalizeRows(m mat.Matrix) *CSR {
	r, c := m.Dims()
	rInv := invPow(RowSums(m), -1)
	return compact(r, c, func(fn func(i, j int, v float64)) {
		DoNonZero(m, func(i, j int, v float64) { fn(i, j, v*rInv[i]) })
	})
}
