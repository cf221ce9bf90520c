// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package hessian prepares the Hessian propagation operator: an externally computed dense
// Hessian over the graph nodes is rescaled by 2/λ_max, sparsified and shifted by -I.
package hessian

import (
	"io"
	"math"
	"math/cmplx"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

var (
	// ErrNotSquare is returned when the Hessian table is not square.
	ErrNotSquare = errors.New("hessian is not square")

	// ErrZeroEigenvalue is returned when the dominant eigenvalue is (numerically) zero, and hence can't be
	// used to rescale the matrix.
	ErrZeroEigenvalue = errors.New("dominant eigenvalue is zero")

	// ErrEigenFailed is returned when the eigenvalue decomposition does not converge.
	ErrEigenFailed = errors.New("eigenvalue decomposition failed")

	// ErrMalformed is returned for tables with missing or non-numeric cells.
	ErrMalformed = errors.New("malformed hessian table")
)

// ZeroTolerance is the magnitude below which the dominant eigenvalue is considered zero.
var ZeroTolerance = 1e-12

// ImaginaryTolerance is the relative size of the imaginary part of λ_max above which a warning is logged.
var ImaginaryTolerance = 1e-9

// ReadCSV reads a headerless, purely numeric table into a dense matrix.
func ReadCSV(r io.Reader) (*mat.Dense, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(false),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.Float))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "reading hessian table")
	}
	rows, cols := df.Nrow(), df.Ncol()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrapf(ErrMalformed, "empty table (%d rows, %d columns)", rows, cols)
	}
	h := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			v := df.Elem(i, j).Float()
			if math.IsNaN(v) {
				return nil, errors.Wrapf(ErrMalformed, "cell (%d, %d) is not a number", i, j)
			}
			h.Set(i, j, v)
		}
	}
	return h, nil
}

// Load reads the Hessian table from filePath.
func Load(filePath string) (*mat.Dense, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening hessian file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	h, err := ReadCSV(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "hessian file %q", filePath)
	}
	return h, nil
}

// DominantEigenvalue returns the largest eigenvalue of h: eigenvalues are ordered by their real part,
// and ties are broken by magnitude.
func DominantEigenvalue(h mat.Matrix) (complex128, error) {
	r, c := h.Dims()
	if r != c {
		return 0, errors.Wrapf(ErrNotSquare, "got %dx%d", r, c)
	}
	var eig mat.Eigen
	if !eig.Factorize(h, mat.EigenNone) {
		return 0, errors.Wrapf(ErrEigenFailed, "%dx%d hessian", r, c)
	}
	values := eig.Values(nil)
	best := values[0]
	for _, v := range values[1:] {
		if real(v) > real(best) || (real(v) == real(best) && cmplx.Abs(v) > cmplx.Abs(best)) {
			best = v
		}
	}
	return best, nil
}

// Rescale returns (2/Re(λ))·h.
func Rescale(h mat.Matrix, lambda complex128) (*mat.Dense, error) {
	lambdaRe := real(lambda)
	if math.Abs(lambdaRe) < ZeroTolerance {
		return nil, errors.Wrapf(ErrZeroEigenvalue, "λ_max=%v", lambda)
	}
	if imag(lambda) != 0 && math.Abs(imag(lambda)) > ImaginaryTolerance*cmplx.Abs(lambda) {
		klog.Warningf("dominant eigenvalue of the hessian is complex (%v), scaling by its real part", lambda)
	}
	var scaled mat.Dense
	scaled.Scale(2/lambdaRe, h)
	return &scaled, nil
}

// Operator builds the propagation operator (2/λ_max)·H - I in coordinate form. It also returns λ_max.
func Operator(h mat.Matrix) (op *spmat.COO, lambdaMax complex128, err error) {
	lambdaMax, err = DominantEigenvalue(h)
	if err != nil {
		return nil, 0, err
	}
	scaled, err := Rescale(h, lambdaMax)
	if err != nil {
		return nil, 0, err
	}
	shifted, err := spmat.AddIdentity(spmat.FromMatrix(scaled), -1)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "shifting rescaled hessian")
	}
	op = shifted.COO()
	klog.V(1).Infof("hessian operator: λ_max=%v, %s", lambdaMax, op)
	return op, lambdaMax, nil
}
