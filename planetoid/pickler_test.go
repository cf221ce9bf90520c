// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package planetoid

import (
	"bytes"
	"encoding/binary"
	"math"
)

// pickler writes the subset of the pickle protocol used by Python 2's cPickle (protocol 2) to dump
// numpy arrays, scipy sparse matrices and defaultdicts.
type pickler struct {
	bytes.Buffer
}

func newPickler() *pickler {
	p := &pickler{}
	p.Write([]byte{0x80, 2}) // PROTO 2
	return p
}

func (p *pickler) global(module, name string) {
	p.WriteByte('c')
	p.WriteString(module + "\n" + name + "\n")
}

func (p *pickler) mark()       { p.WriteByte('(') }
func (p *pickler) tuple()      { p.WriteByte('t') }
func (p *pickler) emptyTuple() { p.WriteByte(')') }
func (p *pickler) reduce()     { p.WriteByte('R') }
func (p *pickler) build()      { p.WriteByte('b') }
func (p *pickler) newObj()     { p.WriteByte(0x81) }
func (p *pickler) emptyDict()  { p.WriteByte('}') }
func (p *pickler) setItems()   { p.WriteByte('u') }
func (p *pickler) emptyList()  { p.WriteByte(']') }
func (p *pickler) appends()    { p.WriteByte('e') }
func (p *pickler) none()       { p.WriteByte('N') }

func (p *pickler) stop() []byte {
	p.WriteByte('.')
	return p.Bytes()
}

func (p *pickler) int(v int) {
	p.WriteByte('J') // BININT
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
	p.Write(buf[:])
}

func (p *pickler) bool(v bool) {
	if v {
		p.WriteByte(0x88)
	} else {
		p.WriteByte(0x89)
	}
}

// str writes a Python 2 str.
func (p *pickler) str(s string) {
	if len(s) < 256 {
		p.WriteByte('U') // SHORT_BINSTRING
		p.WriteByte(byte(len(s)))
	} else {
		p.WriteByte('T') // BINSTRING
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(len(s)))
		p.Write(buf[:])
	}
	p.WriteString(s)
}

func (p *pickler) ints(values ...int) {
	p.mark()
	for _, v := range values {
		p.int(v)
	}
	p.tuple()
}

// dtype writes numpy.dtype(descr) with the given byte order ('<', '>' or '|').
func (p *pickler) dtype(descr string, order byte) {
	p.global("numpy", "dtype")
	p.mark()
	p.str(descr)
	p.bool(false)
	p.bool(true)
	p.tuple()
	p.reduce()
	p.mark()
	p.int(3)
	p.str(string(order))
	p.none()
	p.none()
	p.none()
	p.int(-1)
	p.int(-1)
	p.int(0)
	p.tuple()
	p.build()
}

// ndarray writes a numpy array with the given raw buffer.
func (p *pickler) ndarray(descr string, order byte, shape []int, fortran bool, raw []byte) {
	p.global("numpy.core.multiarray", "_reconstruct")
	p.mark()
	p.global("numpy", "ndarray")
	p.ints(0)
	p.str("b")
	p.tuple()
	p.reduce()
	p.mark()
	p.int(1)
	p.ints(shape...)
	p.dtype(descr, order)
	p.bool(fortran)
	p.str(string(raw))
	p.tuple()
	p.build()
}

func float64Bytes(values []float64) []byte {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return raw
}

func float32Bytes(values []float32) []byte {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return raw
}

func int32Bytes(order binary.ByteOrder, values []int) []byte {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(raw[4*i:], uint32(int32(v)))
	}
	return raw
}

// denseArray pickles a row-major float64 matrix.
func denseArray(rows, cols int, data []float64) []byte {
	p := newPickler()
	p.ndarray("f8", '<', []int{rows, cols}, false, float64Bytes(data))
	return p.stop()
}

// csrMatrix pickles the scipy.sparse.csr_matrix of the row-major dense data given.
func csrMatrix(rows, cols int, dense []float32) []byte {
	var values []float32
	var indices []int
	indptr := []int{0}
	for i := range rows {
		for j := range cols {
			if v := dense[i*cols+j]; v != 0 {
				values = append(values, v)
				indices = append(indices, j)
			}
		}
		indptr = append(indptr, len(values))
	}
	p := newPickler()
	p.global("scipy.sparse.csr", "csr_matrix")
	p.emptyTuple()
	p.newObj()
	p.emptyDict()
	p.mark()
	p.str("_shape")
	p.ints(rows, cols)
	p.str("data")
	p.ndarray("f4", '<', []int{len(values)}, false, float32Bytes(values))
	p.str("indices")
	p.ndarray("i4", '<', []int{len(indices)}, false, int32Bytes(binary.LittleEndian, indices))
	p.str("indptr")
	p.ndarray("i4", '<', []int{len(indptr)}, false, int32Bytes(binary.LittleEndian, indptr))
	p.str("format")
	p.str("csr")
	p.str("maxprint")
	p.int(50)
	p.setItems()
	p.build()
	return p.stop()
}

// neighborLists pickles a defaultdict(list), with keys in the order given.
func neighborLists(nodes []int, neighbors map[int][]int) []byte {
	p := newPickler()
	p.global("collections", "defaultdict")
	p.mark()
	p.global("__builtin__", "list")
	p.tuple()
	p.reduce()
	p.mark()
	for _, node := range nodes {
		p.int(node)
		p.emptyList()
		p.mark()
		for _, neighbor := range neighbors[node] {
			p.int(neighbor)
		}
		p.appends()
	}
	p.setItems()
	return p.stop()
}
