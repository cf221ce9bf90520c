// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"github.com/gomlx/gomlx/ml/context"
)

// Hyperparameter keys stored in the context.
const (
	// ParamSeed seeds both the parameter initialization and the dropout masks.
	ParamSeed = "seed"

	// ParamEpochs is the number of training epochs.
	ParamEpochs = "epochs"

	// ParamLearningRate is the Adam learning rate. It uses the same key as optimizers.ParamLearningRate.
	ParamLearningRate = "learning_rate"

	// ParamWeightDecay is the L2 penalty coefficient: wd/2·Σw² is added to the optimized loss.
	ParamWeightDecay = "weight_decay"

	// ParamHidden is the width of both layers of each branch.
	ParamHidden = "hidden"

	// ParamDropout is the probability of dropping a hidden unit during training.
	ParamDropout = "dropout"

	// ParamFastMode skips the evaluation pass after each epoch: validation metrics are taken from the
	// training pass instead.
	ParamFastMode = "fast_mode"

	// ParamDataset is the name of the Planetoid dataset.
	ParamDataset = "dataset"
)

// CreateDefaultContext returns a context with the default hyperparameters.
//
// The context is unchecked, so the variables created by NewEnsemble can be used by more than one graph.
func CreateDefaultContext() *context.Context {
	ctx := context.New().Checked(false)
	ctx.SetParams(map[string]any{
		ParamSeed:         23,
		ParamEpochs:       500,
		ParamLearningRate: 0.005,
		ParamWeightDecay:  4e-5,
		ParamHidden:       16,
		ParamDropout:      0.5,
		ParamFastMode:     false,
		ParamDataset:      "cora",
	})
	return ctx
}
