// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package planetoid

import (
	"encoding/binary"
	"io"
	"math"
	"math/big"
	"strconv"

	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/pkg/errors"
)

// Unpickle decodes one pickled object, resolving the numpy, scipy and collections classes used by the
// Planetoid artifacts:
//
//   - numpy arrays decode to *NDArray;
//   - scipy.sparse.csr_matrix decodes to *CSRMatrix;
//   - collections.defaultdict decodes to *NeighborLists.
func Unpickle(r io.Reader) (any, error) {
	u := pickle.NewUnpickler(r)
	u.FindClass = findClass
	obj, err := u.Load()
	if err != nil {
		return nil, errors.Wrap(err, "unpickling")
	}
	return obj, nil
}

func findClass(module, name string) (any, error) {
	switch module + "." + name {
	case "numpy.core.multiarray._reconstruct", "numpy._core.multiarray._reconstruct":
		return reconstructNDArray{}, nil
	case "numpy.ndarray":
		return ndarrayClass{}, nil
	case "numpy.dtype":
		return dtypeClass{}, nil
	case "scipy.sparse.csr.csr_matrix", "scipy.sparse._csr.csr_matrix", "scipy.sparse.csr_matrix":
		return csrClass{}, nil
	case "collections.defaultdict":
		return defaultDictClass{}, nil
	case "copy_reg._reconstructor", "copyreg._reconstructor":
		return reconstructor{}, nil
	case "__builtin__.list", "builtins.list":
		return listClass{}, nil
	}
	return nil, errors.Errorf("unsupported pickled class %s.%s", module, name)
}

// asTuple returns the items of a pickled tuple or list.
func asTuple(obj any) ([]any, bool) {
	switch v := obj.(type) {
	case *types.Tuple:
		return []any(*v), true
	case types.Tuple:
		return []any(v), true
	case *types.List:
		return []any(*v), true
	case types.List:
		return []any(v), true
	}
	return nil, false
}

// asInt converts the pickled integer representations.
func asInt(obj any) (int, bool) {
	switch v := obj.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case *big.Int:
		if v.IsInt64() {
			return int(v.Int64()), true
		}
	}
	return 0, false
}

// asBytes returns the raw buffer of a Python 2 str (latin-1 decoded) or Python 3 bytes.
func asBytes(obj any) ([]byte, bool) {
	switch v := obj.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	}
	return nil, false
}

type reconstructor struct{}

// Call implements types.Callable for copy_reg._reconstructor(cls, base, state).
func (reconstructor) Call(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("_reconstructor called without a class")
	}
	cls, ok := args[0].(types.PyNewable)
	if !ok {
		return nil, errors.Errorf("_reconstructor can't instantiate %T", args[0])
	}
	return cls.PyNew()
}

type listClass struct{}

// Call implements types.Callable.
func (listClass) Call(args ...any) (any, error) { return types.NewList(), nil }

// NDArray is a decoded numpy array. Values of every supported dtype are converted to float64, and are
// stored in row-major order regardless of the pickled layout.
type NDArray struct {
	Shape []int
	Data  []float64
	DType string
}

type ndarrayClass struct{}

// PyNew implements types.PyNewable.
func (ndarrayClass) PyNew(args ...any) (any, error) { return &NDArray{}, nil }

type reconstructNDArray struct{}

// Call implements types.Callable for numpy's _reconstruct(subtype, shape, dtype).
func (reconstructNDArray) Call(args ...any) (any, error) { return &NDArray{}, nil }

// Size is the number of elements.
func (a *NDArray) Size() int {
	size := 1
	for _, dim := range a.Shape {
		size *= dim
	}
	return size
}

// PySetState implements types.PyStateSettable: the state is (version, shape, dtype, isFortran, rawData),
// where the version is absent in old pickles.
func (a *NDArray) PySetState(state any) error {
	items, ok := asTuple(state)
	if !ok {
		return errors.Errorf("ndarray state is a %T, not a tuple", state)
	}
	if len(items) == 5 {
		items = items[1:]
	}
	if len(items) != 4 {
		return errors.Errorf("ndarray state has %d items, expected 4 or 5", len(items))
	}
	shapeItems, ok := asTuple(items[0])
	if !ok {
		return errors.Errorf("ndarray shape is a %T", items[0])
	}
	a.Shape = make([]int, len(shapeItems))
	for axis, item := range shapeItems {
		if a.Shape[axis], ok = asInt(item); !ok || a.Shape[axis] < 0 {
			return errors.Errorf("invalid ndarray dimension %v", item)
		}
	}
	dtype, ok := items[1].(*numpyDType)
	if !ok {
		return errors.Errorf("ndarray dtype is a %T", items[1])
	}
	a.DType = dtype.descr
	isFortran, _ := items[2].(bool)

	if raw, ok := asBytes(items[3]); ok {
		data, err := dtype.decode(raw, a.Size())
		if err != nil {
			return err
		}
		a.Data = data
	} else if values, ok := asTuple(items[3]); ok {
		// Object arrays are pickled as a list of Python values.
		a.Data = make([]float64, len(values))
		for i, v := range values {
			switch n := v.(type) {
			case float64:
				a.Data[i] = n
			default:
				asI, ok := asInt(v)
				if !ok {
					return errors.Errorf("object ndarray holds a non-numeric %T", v)
				}
				a.Data[i] = float64(asI)
			}
		}
		if len(a.Data) != a.Size() {
			return errors.Errorf("object ndarray has %d values for shape %v", len(a.Data), a.Shape)
		}
	} else {
		return errors.Errorf("ndarray data is a %T", items[3])
	}
	if isFortran && len(a.Shape) > 1 {
		a.Data = fortranToC(a.Data, a.Shape)
	}
	return nil
}

// fortranToC reorders column-major data into row-major.
func fortranToC(data []float64, shape []int) []float64 {
	rank := len(shape)
	fStrides := make([]int, rank)
	stride := 1
	for axis := range rank {
		fStrides[axis] = stride
		stride *= shape[axis]
	}
	out := make([]float64, len(data))
	index := make([]int, rank)
	for flat := range out {
		fPos := 0
		for axis := range rank {
			fPos += index[axis] * fStrides[axis]
		}
		out[flat] = data[fPos]
		// Increment the row-major multi-index.
		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < shape[axis] {
				break
			}
			index[axis] = 0
		}
	}
	return out
}

// Matrix converts a 2D array to a sparse matrix.
func (a *NDArray) Matrix() (*spmat.CSR, error) {
	if len(a.Shape) != 2 {
		return nil, errors.Errorf("expected a 2D array, got shape %v", a.Shape)
	}
	rows, cols := a.Shape[0], a.Shape[1]
	b := spmat.NewBuilder(rows, cols)
	for i := range rows {
		for j := range cols {
			if v := a.Data[i*cols+j]; v != 0 {
				b.Set(i, j, v)
			}
		}
	}
	return b.CSR(), nil
}

// Ints returns the values of the array converted to int.
func (a *NDArray) Ints() []int {
	out := make([]int, len(a.Data))
	for i, v := range a.Data {
		out[i] = int(v)
	}
	return out
}

type dtypeClass struct{}

// numpyDType is a decoded numpy.dtype: only fixed-size numeric kinds are supported.
type numpyDType struct {
	descr string
	kind  byte
	size  int
	order binary.ByteOrder
}

// Call implements types.Callable for numpy.dtype(descr, align, copy).
func (dtypeClass) Call(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("numpy.dtype called without a type descriptor")
	}
	descr, ok := args[0].(string)
	if !ok || len(descr) < 2 {
		return nil, errors.Errorf("invalid numpy dtype descriptor %v", args[0])
	}
	size, err := strconv.Atoi(descr[1:])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid numpy dtype descriptor %q", descr)
	}
	return &numpyDType{descr: descr, kind: descr[0], size: size, order: binary.LittleEndian}, nil
}

// PySetState implements types.PyStateSettable. The byte order is the second item of the state.
func (d *numpyDType) PySetState(state any) error {
	items, ok := asTuple(state)
	if !ok || len(items) < 2 {
		return errors.Errorf("invalid numpy dtype state %v", state)
	}
	if order, _ := items[1].(string); order == ">" {
		d.order = binary.BigEndian
	}
	return nil
}

func (d *numpyDType) decode(raw []byte, size int) ([]float64, error) {
	if len(raw) != size*d.size {
		return nil, errors.Errorf("ndarray of dtype %s with %d elements should have %d bytes, got %d",
			d.descr, size, size*d.size, len(raw))
	}
	out := make([]float64, size)
	for i := range out {
		chunk := raw[i*d.size : (i+1)*d.size]
		switch {
		case d.kind == 'f' && d.size == 4:
			out[i] = float64(math.Float32frombits(d.order.Uint32(chunk)))
		case d.kind == 'f' && d.size == 8:
			out[i] = math.Float64frombits(d.order.Uint64(chunk))
		case d.kind == 'i' && d.size == 1:
			out[i] = float64(int8(chunk[0]))
		case d.kind == 'i' && d.size == 2:
			out[i] = float64(int16(d.order.Uint16(chunk)))
		case d.kind == 'i' && d.size == 4:
			out[i] = float64(int32(d.order.Uint32(chunk)))
		case d.kind == 'i' && d.size == 8:
			out[i] = float64(int64(d.order.Uint64(chunk)))
		case (d.kind == 'u' || d.kind == 'b') && d.size == 1:
			out[i] = float64(chunk[0])
		case d.kind == 'u' && d.size == 2:
			out[i] = float64(d.order.Uint16(chunk))
		case d.kind == 'u' && d.size == 4:
			out[i] = float64(d.order.Uint32(chunk))
		case d.kind == 'u' && d.size == 8:
			out[i] = float64(d.order.Uint64(chunk))
		default:
			return nil, errors.Errorf("unsupported numpy dtype %q", d.descr)
		}
	}
	return out, nil
}

// CSRMatrix is a decoded scipy.sparse.csr_matrix.
type CSRMatrix struct {
	NumRows, NumCols      int
	Data, Indices, Indptr *NDArray
}

type csrClass struct{}

// PyNew implements types.PyNewable.
func (csrClass) PyNew(args ...any) (any, error) { return &CSRMatrix{}, nil }

// PySetState implements types.PyStateSettable, with the instance __dict__ as state.
func (m *CSRMatrix) PySetState(state any) error {
	dict, ok := state.(*types.Dict)
	if !ok {
		return errors.Errorf("csr_matrix state is a %T, not a dict", state)
	}
	shapeObj, found := dict.Get("_shape")
	if !found {
		shapeObj, found = dict.Get("shape")
	}
	if !found {
		return errors.New("csr_matrix state has no shape")
	}
	shape, ok := asTuple(shapeObj)
	if !ok || len(shape) != 2 {
		return errors.Errorf("invalid csr_matrix shape %v", shapeObj)
	}
	m.NumRows, _ = asInt(shape[0])
	m.NumCols, _ = asInt(shape[1])
	for key, target := range map[string]**NDArray{"data": &m.Data, "indices": &m.Indices, "indptr": &m.Indptr} {
		obj, found := dict.Get(key)
		if !found {
			return errors.Errorf("csr_matrix state has no %q", key)
		}
		if *target, ok = obj.(*NDArray); !ok {
			return errors.Errorf("csr_matrix %q is a %T", key, obj)
		}
	}
	return nil
}

// Matrix converts to a sparse matrix, validating the compressed structure.
func (m *CSRMatrix) Matrix() (*spmat.CSR, error) {
	indptr, indices := m.Indptr.Ints(), m.Indices.Ints()
	if len(indptr) != m.NumRows+1 {
		return nil, errors.Errorf("csr_matrix with %d rows has %d row pointers", m.NumRows, len(indptr))
	}
	if len(indices) != len(m.Data.Data) || indptr[m.NumRows] != len(indices) {
		return nil, errors.Errorf("csr_matrix has %d indices, %d values and nnz=%d",
			len(indices), len(m.Data.Data), indptr[m.NumRows])
	}
	b := spmat.NewBuilder(m.NumRows, m.NumCols)
	for i := range m.NumRows {
		if indptr[i] > indptr[i+1] {
			return nil, errors.Errorf("csr_matrix row pointers decrease at row %d", i)
		}
		for k := indptr[i]; k < indptr[i+1]; k++ {
			j := indices[k]
			if j < 0 || j >= m.NumCols {
				return nil, errors.Errorf("csr_matrix column %d out of range at row %d", j, i)
			}
			b.Add(i, j, m.Data.Data[k])
		}
	}
	return b.CSR(), nil
}

// NeighborLists is a decoded defaultdict(list) mapping a node index to its neighbors' indices.
type NeighborLists struct {
	Nodes     []int
	Neighbors map[int][]int
	err       error
}

type defaultDictClass struct{}

// Call implements types.Callable for defaultdict(default_factory).
func (defaultDictClass) Call(args ...any) (any, error) {
	return &NeighborLists{Neighbors: make(map[int][]int)}, nil
}

// Set implements types.DictSetter.
func (n *NeighborLists) Set(key, value any) {
	if n.err != nil {
		return
	}
	node, ok := asInt(key)
	if !ok {
		n.err = errors.Errorf("neighbor lists keyed by %T", key)
		return
	}
	items, ok := asTuple(value)
	if !ok {
		n.err = errors.Errorf("neighbors of node %d are a %T", node, value)
		return
	}
	neighbors := make([]int, len(items))
	for i, item := range items {
		if neighbors[i], ok = asInt(item); !ok {
			n.err = errors.Errorf("neighbor #%d of node %d is a %T", i, node, item)
			return
		}
	}
	if _, found := n.Neighbors[node]; !found {
		n.Nodes = append(n.Nodes, node)
	}
	n.Neighbors[node] = neighbors
}

// Err returns the first error found while decoding, if any.
func (n *NeighborLists) Err() error { return n.err }
