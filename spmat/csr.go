// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package spmat holds the sparse matrix utilities used to prepare graph propagation operators:
// symmetric adjacency normalization, row normalization and conversion to the coordinate form
// that is later fed to the model as a sparse tensor.
//
// Matrices are accepted as gonum's mat.Matrix, so dense inputs (mat.Dense) and the sparse
// types of this package (CSR, COO) can be used interchangeably.
package spmat

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNotSquare is returned by operations that require a square matrix.
var ErrNotSquare = errors.New("matrix is not square")

// CSR is a compressed sparse row matrix with float64 values.
//
// It implements mat.Matrix, mat.NonZeroDoer and mat.RowNonZeroDoer. It is immutable once built,
// use a Builder to create one.
type CSR struct {
	numRows, numCols int
	indptr           []int
	indices          []int
	data             []float64
}

var (
	_ mat.Matrix         = (*CSR)(nil)
	_ mat.NonZeroDoer    = (*CSR)(nil)
	_ mat.RowNonZeroDoer = (*CSR)(nil)
)

// Dims implements mat.Matrix.
func (m *CSR) Dims() (r, c int) { return m.numRows, m.numCols }

// At implements mat.Matrix. It panics if (i, j) is out of range, like gonum's matrices.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.numRows || j < 0 || j >= m.numCols {
		panic(mat.ErrIndexOutOfRange)
	}
	cols := m.indices[m.indptr[i]:m.indptr[i+1]]
	if pos, found := slices.BinarySearch(cols, j); found {
		return m.data[m.indptr[i]+pos]
	}
	return 0
}

// T implements mat.Matrix.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored (non-zero) entries.
func (m *CSR) NNZ() int { return len(m.data) }

// DoNonZero calls fn for each non-zero entry, in row-major order.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := range m.numRows {
		m.DoRowNonZero(i, fn)
	}
}

// DoRowNonZero calls fn for each non-zero entry of row i, in column order.
func (m *CSR) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		fn(i, m.indices[k], m.data[k])
	}
}

// RowSums returns the sum of each row.
func (m *CSR) RowSums() []float64 {
	sums := make([]float64, m.numRows)
	m.DoNonZero(func(i, _ int, v float64) { sums[i] += v })
	return sums
}

// Dense returns a dense copy of the matrix.
func (m *CSR) Dense() *mat.Dense {
	if m.numRows == 0 || m.numCols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.numRows, m.numCols, nil)
	m.DoNonZero(func(i, j int, v float64) { d.Set(i, j, v) })
	return d
}

// COO converts the matrix to coordinate form.
func (m *CSR) COO() *COO {
	coo := &COO{
		NumRows: m.numRows,
		NumCols: m.numCols,
		Rows:    make([]int64, 0, len(m.data)),
		Cols:    make([]int64, 0, len(m.data)),
		Values:  make([]float32, 0, len(m.data)),
	}
	m.DoNonZero(func(i, j int, v float64) {
		coo.Rows = append(coo.Rows, int64(i))
		coo.Cols = append(coo.Cols, int64(j))
		coo.Values = append(coo.Values, float32(v))
	})
	return coo
}

// Builder accumulates entries of a sparse matrix in any order and then compacts them into a CSR.
// Entries added more than once are summed. Input already in row-major order is better served by
// FromMatrix, which doesn't hash every entry.
type Builder struct {
	numRows, numCols int
	entries          map[[2]int]float64
}

// NewBuilder creates a Builder for a numRows x numCols matrix.
func NewBuilder(numRows, numCols int) *Builder {
	return &Builder{numRows: numRows, numCols: numCols, entries: make(map[[2]int]float64)}
}

// Add v to the entry (i, j).
func (b *Builder) Add(i, j int, v float64) {
	if i < 0 || i >= b.numRows || j < 0 || j >= b.numCols {
		panic(mat.ErrIndexOutOfRange)
	}
	b.entries[[2]int{i, j}] += v
}

// Set the entry (i, j) to v, discarding any previous value.
func (b *Builder) Set(i, j int, v float64) {
	if i < 0 || i >= b.numRows || j < 0 || j >= b.numCols {
		panic(mat.ErrIndexOutOfRange)
	}
	b.entries[[2]int{i, j}] = v
}

// CSR compacts the accumulated entries. Entries that ended up exactly zero are dropped.
func (b *Builder) CSR() *CSR {
	keys := make([][2]int, 0, len(b.entries))
	for key, v := range b.entries {
		if v != 0 {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	m := &CSR{
		numRows: b.numRows,
		numCols: b.numCols,
		indptr:  make([]int, b.numRows+1),
		indices: make([]int, len(keys)),
		data:    make([]float64, len(keys)),
	}
	for k, key := range keys {
		m.indptr[key[0]+1]++
		m.indices[k] = key[1]
		m.data[k] = b.entries[key]
	}
	for i := range b.numRows {
		m.indptr[i+1] += m.indptr[i]
	}
	return m
}

// FromMatrix copies any mat.Matrix into a CSR, dropping zeros.
func FromMatrix(a mat.Matrix) *CSR {
	if m, ok := a.(*CSR); ok {
		return m
	}
	r, c := a.Dims()
	return compact(r, c, func(fn func(i, j int, v float64)) { DoNonZero(a, fn) })
}

// rowAppender builds a CSR from entries given in row-major order, without intermediate storage.
// Repeated entries at the same position are summed. Any entry out of order marks it unordered, and
// further entries are ignored.
type rowAppender struct {
	m         *CSR
	row, col  int
	unordered bool
}

func newRowAppender(numRows, numCols int) *rowAppender {
	return &rowAppender{
		m:   &CSR{numRows: numRows, numCols: numCols, indptr: make([]int, numRows+1)},
		col: -1,
	}
}

func (a *rowAppender) add(i, j int, v float64) {
	if i < 0 || i >= a.m.numRows || j < 0 || j >= a.m.numCols {
		panic(mat.ErrIndexOutOfRange)
	}
	if a.unordered {
		return
	}
	if i == a.row && j == a.col {
		a.m.data[len(a.m.data)-1] += v
		return
	}
	if i < a.row || (i == a.row && j < a.col) {
		a.unordered = true
		return
	}
	a.row, a.col = i, j
	a.m.indptr[i+1]++
	a.m.indices = append(a.m.indices, j)
	a.m.data = append(a.m.data, v)
}

// csr turns the per-row counts into offsets, dropping entries that summed to zero.
func (a *rowAppender) csr() *CSR {
	m := a.m
	k, kept := 0, 0
	for i := range m.numRows {
		for range m.indptr[i+1] {
			if m.data[k] != 0 {
				m.indices[kept], m.data[kept] = m.indices[k], m.data[k]
				kept++
			}
			k++
		}
		m.indptr[i+1] = kept
	}
	m.indices, m.data = m.indices[:kept], m.data[:kept]
	return m
}

// compact builds a CSR from the entries emitted by walk, summing repeated positions and dropping zeros.
// Row-major streams are appended directly. Otherwise walk is called a second time to feed a Builder.
func compact(numRows, numCols int, walk func(fn func(i, j int, v float64))) *CSR {
	a := newRowAppender(numRows, numCols)
	walk(a.add)
	if !a.unordered {
		return a.csr()
	}
	b := NewBuilder(numRows, numCols)
	walk(b.Add)
	return b.CSR()
}

// DoNonZero calls fn for every non-zero entry of a. Sparse matrices implementing mat.NonZeroDoer
// are walked directly, anything else is scanned element by element.
func DoNonZero(a mat.Matrix, fn func(i, j int, v float64)) {
	if nz, ok := a.(mat.NonZeroDoer); ok {
		nz.DoNonZero(func(i, j int, v float64) {
			if v != 0 {
				fn(i, j, v)
			}
		})
		return
	}
	r, c := a.Dims()
	for i := range r {
		for j := range c {
			if v := a.At(i, j); v != 0 {
				fn(i, j, v)
			}
		}
	}
}

// Identity returns the n x n identity matrix.
func Identity(n int) *CSR {
	a := newRowAppender(n, n)
	for i := range n {
		a.add(i, i, 1)
	}
	return a.csr()
}

// AddIdentity returns a + scale·I. The matrix must be square.
func AddIdentity(a mat.Matrix, scale float64) (*CSR, error) {
	r, c := a.Dims()
	if r != c {
		return nil, errors.Wrapf(ErrNotSquare, "cannot add identity to %dx%d matrix", r, c)
	}
	return compact(r, c, func(fn func(i, j int, v float64)) {
		// Diagonal entries are interleaved so that row-major input stays row-major.
		diag := 0
		DoNonZero(a, func(i, j int, v float64) {
			for diag < r && (diag < i || (diag == i && diag <= j)) {
				fn(diag, diag, scale)
				diag++
			}
			fn(i, j, v)
		})
		for ; diag < r; diag++ {
			fn(diag, diag, scale)
		}
	}), nil
}
