// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package planetoid

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpickleNDArray(t *testing.T) {
	obj, err := Unpickle(bytes.NewReader(denseArray(2, 3, []float64{1, 2, 3, 4, 5, 6})))
	require.NoError(t, err)
	array, ok := obj.(*NDArray)
	require.True(t, ok, "got %T", obj)
	assert.Equal(t, []int{2, 3}, array.Shape)
	assert.Equal(t, "f8", array.DType)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, array.Data)

	m, err := array.Matrix()
	require.NoError(t, err)
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.Equal(t, 2.0, m.At(0, 1))
}

func TestUnpickleNDArrayLayouts(t *testing.T) {
	t.Run("fortran", func(t *testing.T) {
		p := newPickler()
		// [[1, 2, 3], [4, 5, 6]] in column-major order.
		p.ndarray("f8", '<', []int{2, 3}, true, float64Bytes([]float64{1, 4, 2, 5, 3, 6}))
		obj, err := Unpickle(bytes.NewReader(p.stop()))
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, obj.(*NDArray).Data)
	})

	t.Run("big-endian int32", func(t *testing.T) {
		p := newPickler()
		p.ndarray("i4", '>', []int{3}, false, int32Bytes(binary.BigEndian, []int{-7, 0, 1 << 20}))
		obj, err := Unpickle(bytes.NewReader(p.stop()))
		require.NoError(t, err)
		array := obj.(*NDArray)
		assert.Equal(t, []float64{-7, 0, 1 << 20}, array.Data)
		assert.Equal(t, []int{-7, 0, 1 << 20}, array.Ints())
	})

	t.Run("float32", func(t *testing.T) {
		p := newPickler()
		p.ndarray("f4", '<', []int{1, 2}, false, float32Bytes([]float32{0.25, -8}))
		obj, err := Unpickle(bytes.NewReader(p.stop()))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.25, -8}, obj.(*NDArray).Data)
	})

	t.Run("bool", func(t *testing.T) {
		p := newPickler()
		p.ndarray("b1", '|', []int{4}, false, []byte{1, 0, 0, 1})
		obj, err := Unpickle(bytes.NewReader(p.stop()))
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0, 0, 1}, obj.(*NDArray).Data)
	})

	t.Run("truncated buffer", func(t *testing.T) {
		p := newPickler()
		p.ndarray("f8", '<', []int{3}, false, float64Bytes([]float64{1, 2}))
		_, err := Unpickle(bytes.NewReader(p.stop()))
		require.Error(t, err)
	})

	t.Run("unsupported dtype", func(t *testing.T) {
		p := newPickler()
		p.ndarray("c16", '<', []int{1}, false, make([]byte, 16))
		_, err := Unpickle(bytes.NewReader(p.stop()))
		require.Error(t, err)
	})
}

func TestUnpickleCSRMatrix(t *testing.T) {
	dense := []float32{
		0, 1, 0,
		0, 0, 0,
		2.5, 0, -1,
	}
	obj, err := Unpickle(bytes.NewReader(csrMatrix(3, 3, dense)))
	require.NoError(t, err)
	csr, ok := obj.(*CSRMatrix)
	require.True(t, ok, "got %T", obj)
	assert.Equal(t, 3, csr.NumRows)
	assert.Equal(t, 3, csr.NumCols)

	m, err := csr.Matrix()
	require.NoError(t, err)
	assert.Equal(t, 3, m.NNZ())
	for i := range 3 {
		for j := range 3 {
			assert.Equal(t, float64(dense[i*3+j]), m.At(i, j), "entry (%d, %d)", i, j)
		}
	}

	// Corrupt the row pointers.
	csr.Indptr.Data[1] = 3
	_, err = csr.Matrix()
	require.Error(t, err)
}

func TestUnpickleNeighborLists(t *testing.T) {
	obj, err := Unpickle(bytes.NewReader(neighborLists(
		[]int{2, 0, 1},
		map[int][]int{0: {1, 2}, 1: {0}, 2: {0, 2}})))
	require.NoError(t, err)
	lists, ok := obj.(*NeighborLists)
	require.True(t, ok, "got %T", obj)
	require.NoError(t, lists.Err())
	assert.Equal(t, []int{2, 0, 1}, lists.Nodes)
	assert.Equal(t, []int{1, 2}, lists.Neighbors[0])
	assert.Equal(t, []int{0}, lists.Neighbors[1])
	assert.Equal(t, []int{0, 2}, lists.Neighbors[2])
}

func TestUnpickleUnknownClass(t *testing.T) {
	p := newPickler()
	p.global("pandas.core.frame", "DataFrame")
	p.emptyTuple()
	p.newObj()
	_, err := Unpickle(bytes.NewReader(p.stop()))
	require.Error(t, err)
}
