// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package planetoid loads the citation graph datasets (Cora, Citeseer, Pubmed) in the packaging
// introduced by the Planetoid project: seven pickled objects `ind.<name>.{x,y,tx,ty,allx,ally,graph}`
// plus the plain-text list of test nodes `ind.<name>.test.index`.
//
// Load reconstructs the row-normalized features, the preprocessed adjacency operator, the class
// labels and the train/validation/test node index sets.
package planetoid

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"github.com/hessiangcn/hessiangcn/spmat"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrMissingArtifact is returned when one of the dataset files does not exist.
	ErrMissingArtifact = errors.New("missing dataset artifact")

	// ErrMalformedArtifact is returned when a dataset file can't be decoded or has inconsistent contents.
	ErrMalformedArtifact = errors.New("malformed dataset artifact")
)

// Fixed index ranges used for training, validation and testing, as [start, end) pairs.
var (
	TrainRange = [2]int{0, 140}
	ValRange   = [2]int{200, 500}
	TestRange  = [2]int{500, 1500}
)

// NumValidation is the number of nodes following the labeled training nodes that the label-derived
// validation mask takes.
const NumValidation = 500

// DisconnectedTestNodesDatasets lists the datasets whose test index list has gaps (isolated nodes
// with no test features), which are filled with zero rows.
var DisconnectedTestNodesDatasets = []string{"citeseer"}

// Dataset is a fully loaded dataset.
type Dataset struct {
	Name string

	// Features is the row-normalized feature matrix, one row per node.
	Features *spmat.CSR

	// RawAdjacency is the symmetric 0/1 adjacency matrix built from the neighbor lists.
	RawAdjacency *spmat.CSR

	// Adjacency is the propagation operator D^-1/2·(A+I)·D^-1/2.
	Adjacency *spmat.COO

	// Labels holds one class id per node.
	Labels     []int32
	NumClasses int

	// Train, Val and Test are the node index sets used for training and evaluation: the
	// fixed TrainRange, ValRange and TestRange.
	Train, Val, Test []int

	// MaskTrain, MaskVal and MaskTest are the index sets implied by the packaging itself:
	// the labeled nodes, the NumValidation nodes after them and the listed test nodes.
	MaskTrain, MaskVal, MaskTest []int
}

// NumNodes in the graph.
func (ds *Dataset) NumNodes() int {
	n, _ := ds.Features.Dims()
	return n
}

// NumFeatures per node.
func (ds *Dataset) NumFeatures() int {
	_, f := ds.Features.Dims()
	return f
}

// String implements fmt.Stringer.
func (ds *Dataset) String() string {
	return fmt.Sprintf("%s: %d nodes, %d features, %d classes, adjacency nnz=%d",
		ds.Name, ds.NumNodes(), ds.NumFeatures(), ds.NumClasses, ds.Adjacency.NNZ())
}

// ArtifactPath returns the path of the artifact of the given dataset.
func ArtifactPath(name, object string) string {
	return fmt.Sprintf("ind.%s.%s", name, object)
}

func openArtifact(fsys fs.FS, name, object string) (fs.File, error) {
	filePath := ArtifactPath(name, object)
	f, err := fsys.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrMissingArtifact, "%q", filePath)
		}
		return nil, errors.Wrapf(err, "opening %q", filePath)
	}
	return f, nil
}

// readObject unpickles the artifact `ind.<name>.<object>`.
func readObject(fsys fs.FS, name, object string) (any, error) {
	f, err := openArtifact(fsys, name, object)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	obj, err := Unpickle(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q: %v", ArtifactPath(name, object), err)
	}
	return obj, nil
}

// readMatrix unpickles an artifact holding either a sparse matrix or a 2D array.
func readMatrix(fsys fs.FS, name, object string) (*spmat.CSR, error) {
	obj, err := readObject(fsys, name, object)
	if err != nil {
		return nil, err
	}
	var m *spmat.CSR
	switch v := obj.(type) {
	case *CSRMatrix:
		m, err = v.Matrix()
	case *NDArray:
		m, err = v.Matrix()
	default:
		err = errors.Errorf("unexpected object of type %T", obj)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q: %v", ArtifactPath(name, object), err)
	}
	return m, nil
}

// ParseIndexFile reads one integer per line. Blank lines are ignored.
func ParseIndexFile(r io.Reader) ([]int, error) {
	var indices []int
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 0 {
			return nil, errors.Wrapf(ErrMalformedArtifact, "line %d: invalid node index %q", lineNum, line)
		}
		indices = append(indices, idx)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading index file")
	}
	return indices, nil
}

func readIndexFile(fsys fs.FS, name string) ([]int, error) {
	f, err := openArtifact(fsys, name, "test.index")
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	indices, err := ParseIndexFile(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "%q", ArtifactPath(name, "test.index"))
	}
	return indices, nil
}

func intRange(start, end int) []int {
	r := make([]int, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		r = append(r, i)
	}
	return r
}

// Load reads the dataset `name` from fsys, typically `os.DirFS(dataDir)`.
func Load(fsys fs.FS, name string) (*Dataset, error) {
	objects := make(map[string]*spmat.CSR)
	for _, object := range []string{"x", "y", "tx", "ty", "allx", "ally"} {
		m, err := readMatrix(fsys, name, object)
		if err != nil {
			return nil, err
		}
		objects[object] = m
	}
	xRows, _ := objects["x"].Dims()
	numLabeled, _ := objects["y"].Dims()
	if xRows != numLabeled {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q and %q disagree in the number of labeled nodes",
			ArtifactPath(name, "x"), ArtifactPath(name, "y"))
	}
	graphObj, err := readObject(fsys, name, "graph")
	if err != nil {
		return nil, err
	}
	neighbors, ok := graphObj.(*NeighborLists)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q holds a %T, not neighbor lists",
			ArtifactPath(name, "graph"), graphObj)
	}
	if err := neighbors.Err(); err != nil {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q: %v", ArtifactPath(name, "graph"), err)
	}
	testIdxReorder, err := readIndexFile(fsys, name)
	if err != nil {
		return nil, err
	}
	if len(testIdxReorder) == 0 {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%q is empty", ArtifactPath(name, "test.index"))
	}
	testIdxRange := slices.Clone(testIdxReorder)
	slices.Sort(testIdxRange)

	tx, ty := objects["tx"], objects["ty"]
	if slices.Contains(DisconnectedTestNodesDatasets, name) {
		if tx, err = padTestRows(tx, testIdxRange); err != nil {
			return nil, errors.WithMessagef(err, "padding test features of %q", name)
		}
		if ty, err = padTestRows(ty, testIdxRange); err != nil {
			return nil, errors.WithMessagef(err, "padding test labels of %q", name)
		}
	}

	features, err := vstack(objects["allx"], tx)
	if err != nil {
		return nil, errors.WithMessage(err, "stacking features")
	}
	labelsMatrix, err := vstack(objects["ally"], ty)
	if err != nil {
		return nil, errors.WithMessage(err, "stacking labels")
	}
	numNodes, _ := features.Dims()
	if labelRows, _ := labelsMatrix.Dims(); labelRows != numNodes {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%d feature rows but %d label rows", numNodes, labelRows)
	}
	if testIdxRange[len(testIdxRange)-1] >= numNodes {
		return nil, errors.Wrapf(ErrMalformedArtifact, "test index %d out of range for %d nodes",
			testIdxRange[len(testIdxRange)-1], numNodes)
	}
	if TestRange[1] > numNodes {
		return nil, errors.Wrapf(ErrMalformedArtifact, "fixed test range %v needs at least %d nodes, got %d",
			TestRange, TestRange[1], numNodes)
	}
	features = reorderRows(features, testIdxReorder, testIdxRange)
	labelsMatrix = reorderRows(labelsMatrix, testIdxReorder, testIdxRange)

	rawAdj, err := Adjacency(neighbors, numNodes)
	if err != nil {
		return nil, err
	}
	adj, err := spmat.PreprocessAdj(rawAdj)
	if err != nil {
		return nil, err
	}
	labels, numClasses := collapseOneHot(labelsMatrix)

	ds := &Dataset{
		Name:         name,
		Features:     spmat.NormalizeRows(features),
		RawAdjacency: rawAdj,
		Adjacency:    adj,
		Labels:       labels,
		NumClasses:   numClasses,
		Train:        intRange(TrainRange[0], TrainRange[1]),
		Val:          intRange(ValRange[0], ValRange[1]),
		Test:         intRange(TestRange[0], TestRange[1]),
		MaskTrain:    intRange(0, numLabeled),
		MaskVal:      intRange(numLabeled, min(numLabeled+NumValidation, numNodes)),
		MaskTest:     testIdxRange,
	}
	klog.Infof("Loaded %s", ds)
	return ds, nil
}

// padTestRows places row k of m at position sortedIdx[k]-min(sortedIdx) of a matrix spanning the whole
// range [min(sortedIdx), max(sortedIdx)], leaving the missing rows as zeros.
func padTestRows(m *spmat.CSR, sortedIdx []int) (*spmat.CSR, error) {
	rows, cols := m.Dims()
	if rows != len(sortedIdx) {
		return nil, errors.Wrapf(ErrMalformedArtifact, "%d test rows for %d test indices", rows, len(sortedIdx))
	}
	lo, hi := sortedIdx[0], sortedIdx[len(sortedIdx)-1]
	b := spmat.NewBuilder(hi-lo+1, cols)
	m.DoNonZero(func(i, j int, v float64) {
		b.Set(sortedIdx[i]-lo, j, v)
	})
	return b.CSR(), nil
}

// vstack stacks b under a.
func vstack(a, b *spmat.CSR) (*spmat.CSR, error) {
	aRows, aCols := a.Dims()
	bRows, bCols := b.Dims()
	if aCols != bCols {
		return nil, errors.Wrapf(ErrMalformedArtifact, "can't stack %d columns with %d columns", aCols, bCols)
	}
	out := spmat.NewBuilder(aRows+bRows, aCols)
	a.DoNonZero(out.Set)
	b.DoNonZero(func(i, j int, v float64) { out.Set(aRows+i, j, v) })
	return out.CSR(), nil
}

// reorderRows returns m with row reorder[k] replaced by the original row sorted[k], for every k.
func reorderRows(m *spmat.CSR, reorder, sorted []int) *spmat.CSR {
	rows, cols := m.Dims()
	source := intRange(0, rows)
	for k, dst := range reorder {
		source[dst] = sorted[k]
	}
	b := spmat.NewBuilder(rows, cols)
	for i, src := range source {
		m.DoRowNonZero(src, func(_, j int, v float64) { b.Set(i, j, v) })
	}
	return b.CSR()
}

// collapseOneHot returns the column of the largest value of each row (the first one on ties), so rows
// that are all zeros map to class 0.
func collapseOneHot(m *spmat.CSR) (labels []int32, numClasses int) {
	rows, cols := m.Dims()
	labels = make([]int32, rows)
	for i := range rows {
		best, bestValue := 0, 0.0
		m.DoRowNonZero(i, func(_, j int, v float64) {
			if v > bestValue || (v == bestValue && j < best) {
				best, bestValue = j, v
			}
		})
		labels[i] = int32(best)
	}
	return labels, cols
}

// Adjacency builds the symmetric 0/1 adjacency matrix of the undirected graph given by the neighbor
// lists: node i is row/column i, repeated edges count once and self-loops are kept on the diagonal.
func Adjacency(neighbors *NeighborLists, numNodes int) (*spmat.CSR, error) {
	b := spmat.NewBuilder(numNodes, numNodes)
	for _, node := range neighbors.Nodes {
		if node < 0 || node >= numNodes {
			return nil, errors.Wrapf(ErrMalformedArtifact, "graph node %d out of range for %d nodes", node, numNodes)
		}
		for _, neighbor := range neighbors.Neighbors[node] {
			if neighbor < 0 || neighbor >= numNodes {
				return nil, errors.Wrapf(ErrMalformedArtifact, "neighbor %d of node %d out of range for %d nodes",
					neighbor, node, numNodes)
			}
			b.Set(node, neighbor, 1)
			b.Set(neighbor, node, 1)
		}
	}
	return b.CSR(), nil
}
