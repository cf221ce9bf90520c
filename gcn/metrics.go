// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
)

// Metrics of one pass over an index set.
type Metrics struct {
	Loss, Accuracy float64
}

// String implements fmt.Stringer.
func (m Metrics) String() string {
	return fmt.Sprintf("loss=%.4f accuracy=%.4f", m.Loss, m.Accuracy)
}

// selectRows gathers the rows of x (and labels) at indices, shaped [n, 1].
func selectRows(logProbs, labels, indices *Node) (*Node, *Node) {
	return Gather(logProbs, indices), Gather(labels, indices)
}

// NLLLoss returns the mean negative log-likelihood of labels (Int32[numNodes]) under logProbs
// ([numNodes, numClasses]) restricted to the rows at indices (Int32[n, 1]).
func NLLLoss(logProbs, labels, indices *Node) *Node {
	rows, target := selectRows(logProbs, labels, indices)
	oneHot := OneHot(target, rows.Shape().Dimensions[1], rows.DType())
	return Neg(ReduceAllMean(ReduceSum(Mul(rows, oneHot), -1)))
}

// Accuracy returns the fraction of rows at indices whose argmax equals the label.
func Accuracy(logProbs, labels, indices *Node) *Node {
	rows, target := selectRows(logProbs, labels, indices)
	predictions := ArgMax(rows, -1, target.DType())
	return ReduceAllMean(ConvertDType(Equal(predictions, target), logProbs.DType()))
}

// AccuracyOf is the host version of Accuracy, over all rows of output. Ties go to the lowest class.
func AccuracyOf(output [][]float32, labels []int32) float64 {
	if len(output) == 0 {
		return 0
	}
	var correct int
	for i, row := range output {
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		if int32(best) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(output))
}

// l2Penalty returns Σw² over the given variable values.
func l2Penalty(values []*Node) *Node {
	var total *Node
	for _, v := range values {
		term := ReduceAllSum(Square(v))
		if total == nil {
			total = term
		} else {
			total = Add(total, term)
		}
	}
	return total
}
