// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

// Mode selects the behavior of the forward pass. It is passed explicitly to every forward function.
type Mode int

const (
	// Training enables dropout.
	Training Mode = iota

	// Evaluation disables dropout: the forward pass is deterministic.
	Evaluation
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Training:
		return "Training"
	case Evaluation:
		return "Evaluation"
	}
	return "Mode(?)"
}
