// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package spmat

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// COO is the coordinate form of a sparse matrix, as consumed by the model: one (row, col, value)
// triple per non-zero, with 64-bit indices and 32-bit float values, sorted row-major.
//
// It implements mat.Matrix and mat.NonZeroDoer, so it can be converted back with FromMatrix.
type COO struct {
	NumRows, NumCols int
	Rows, Cols       []int64
	Values           []float32
}

var (
	_ mat.Matrix      = (*COO)(nil)
	_ mat.NonZeroDoer = (*COO)(nil)
)

// ToCOO canonicalizes any matrix, dense or sparse, to coordinate form. Zeros are not stored.
func ToCOO(a mat.Matrix) *COO {
	return FromMatrix(a).COO()
}

// NNZ returns the number of stored entries.
func (c *COO) NNZ() int { return len(c.Values) }

// Dims implements mat.Matrix.
func (c *COO) Dims() (r, cols int) { return c.NumRows, c.NumCols }

// At implements mat.Matrix. It takes O(log(nnz)).
func (c *COO) At(i, j int) float64 {
	if i < 0 || i >= c.NumRows || j < 0 || j >= c.NumCols {
		panic(mat.ErrIndexOutOfRange)
	}
	row, col := int64(i), int64(j)
	k := sort.Search(len(c.Rows), func(k int) bool {
		return c.Rows[k] > row || (c.Rows[k] == row && c.Cols[k] >= col)
	})
	if k < len(c.Rows) && c.Rows[k] == row && c.Cols[k] == col {
		return float64(c.Values[k])
	}
	return 0
}

// T implements mat.Matrix.
func (c *COO) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// DoNonZero implements mat.NonZeroDoer.
func (c *COO) DoNonZero(fn func(i, j int, v float64)) {
	for k, v := range c.Values {
		fn(int(c.Rows[k]), int(c.Cols[k]), float64(v))
	}
}

// CSR converts back to compressed sparse row form.
func (c *COO) CSR() *CSR {
	return compact(c.NumRows, c.NumCols, c.DoNonZero)
}

// Validate checks that indices are within the shape and that the three slices agree in length.
func (c *COO) Validate() error {
	if len(c.Rows) != len(c.Values) || len(c.Cols) != len(c.Values) {
		return errors.Errorf("coordinate matrix has %d rows, %d cols and %d values", len(c.Rows), len(c.Cols), len(c.Values))
	}
	for k := range c.Values {
		if c.Rows[k] < 0 || c.Rows[k] >= int64(c.NumRows) || c.Cols[k] < 0 || c.Cols[k] >= int64(c.NumCols) {
			return errors.Errorf("entry #%d at (%d, %d) is out of the %dx%d shape", k, c.Rows[k], c.Cols[k], c.NumRows, c.NumCols)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (c *COO) String() string {
	return fmt.Sprintf("COO(%dx%d, nnz=%d)", c.NumRows, c.NumCols, c.NNZ())
}
