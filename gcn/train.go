// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package gcn

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EpochRecord is the progress report of one epoch.
type EpochRecord struct {
	// Epoch is 1-based.
	Epoch int

	// Train metrics come from the Training mode pass, before the optimizer step.
	Train Metrics

	// Val metrics come from the Evaluation mode pass after the optimizer step, or from the Training
	// mode pass in fast mode.
	Val Metrics

	Duration time.Duration
}

// Report of a complete training session.
type Report struct {
	Epochs []EpochRecord
	Total  time.Duration
	Test   Metrics
}

// Trainer runs the training loop of an Ensemble.
//
// It is not safe for concurrent use.
type Trainer struct {
	backend backends.Backend
	ctx     *context.Context
	inputs  *Inputs
	model   *Ensemble

	fastMode    bool
	weightDecay float64

	trainExec, evalExec *context.Exec
}

// NewTrainer creates the model variables in ctx and prepares the training and evaluation computations on
// the given backend. Hyperparameters are read from ctx (see CreateDefaultContext).
//
// The random number generator of ctx is reset from ParamSeed, so two trainers created with the same
// parameters and inputs produce the same results.
func NewTrainer(backend backends.Backend, ctx *context.Context, inputs *Inputs) (trainer *Trainer, err error) {
	err = exceptions.TryCatch[error](func() {
		trainer = newTrainer(backend, ctx, inputs)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "creating trainer")
	}
	return trainer, nil
}

func newTrainer(backend backends.Backend, ctx *context.Context, inputs *Inputs) *Trainer {
	t := &Trainer{
		backend:     backend,
		ctx:         ctx,
		inputs:      inputs,
		fastMode:    context.GetParamOr(ctx, ParamFastMode, false),
		weightDecay: context.GetParamOr(ctx, ParamWeightDecay, 0.0),
	}
	ctx.RngStateFromSeed(int64(context.GetParamOr(ctx, ParamSeed, 23)))
	t.model = NewEnsemble(ctx, inputs.NumFeatures)
	if inputs.NumClasses > t.model.Width() {
		exceptions.Panicf("%d classes don't fit the model output width %d (2×%s)",
			inputs.NumClasses, t.model.Width(), ParamHidden)
	}

	optimizer := optimizers.Adam().
		LearningRate(context.GetParamOr(ctx, ParamLearningRate, 0.005)).
		Betas(0.9, 0.999).
		Epsilon(1e-8).
		Done()
	t.trainExec = context.NewExec(backend, ctx, func(ctx *context.Context, nodes []*Node) []*Node {
		in := t.inputNodes(nodes)
		logProbs := t.model.Forward(ctx, Training, in.features, in.adjacency, in.hessian)
		loss := NLLLoss(logProbs, in.labels, in.indices[Train])
		optimized := loss
		if t.weightDecay > 0 {
			values := make([]*Node, 0, 8)
			for _, v := range t.model.Variables() {
				values = append(values, v.ValueGraph(loss.Graph()))
			}
			optimized = Add(loss, MulScalar(l2Penalty(values), t.weightDecay/2))
		}
		optimizer.UpdateGraph(ctx, loss.Graph(), optimized)
		return []*Node{
			loss, Accuracy(logProbs, in.labels, in.indices[Train]),
			NLLLoss(logProbs, in.labels, in.indices[Val]), Accuracy(logProbs, in.labels, in.indices[Val]),
		}
	})
	t.evalExec = context.NewExec(backend, ctx, func(ctx *context.Context, nodes []*Node) []*Node {
		in := t.inputNodes(nodes)
		logProbs := t.model.Forward(ctx, Evaluation, in.features, in.adjacency, in.hessian)
		outputs := make([]*Node, 0, 2*len(in.indices))
		for _, indices := range in.indices {
			outputs = append(outputs, NLLLoss(logProbs, in.labels, indices), Accuracy(logProbs, in.labels, indices))
		}
		return outputs
	})
	klog.V(1).Infof("model with %d parameters (hidden=%d), fast_mode=%v, weight_decay=%g",
		t.model.NumParameters(), t.model.Hidden, t.fastMode, t.weightDecay)
	return t
}

// Model returns the model being trained.
func (t *Trainer) Model() *Ensemble { return t.model }

type inputNodes struct {
	features, labels   *Node
	adjacency, hessian SparseNodes
	indices            [3]*Node
}

// inputNodes splits the parameter nodes fed by Inputs.args.
func (t *Trainer) inputNodes(nodes []*Node) inputNodes {
	if len(nodes) != 11 {
		exceptions.Panicf("expected 11 input nodes, got %d", len(nodes))
	}
	return inputNodes{
		features:  nodes[0],
		labels:    nodes[1],
		adjacency: SparseFromNodes(nodes[2:5]),
		hessian:   SparseFromNodes(nodes[5:8]),
		indices:   [3]*Node{nodes[8], nodes[9], nodes[10]},
	}
}

func scalar(t *tensors.Tensor) float64 {
	return float64(t.Value().(float32))
}

// TrainEpoch runs one optimizer step and, unless in fast mode, an evaluation pass for the validation
// metrics.
func (t *Trainer) TrainEpoch(epoch int) (record EpochRecord, err error) {
	start := time.Now()
	record.Epoch = epoch
	err = exceptions.TryCatch[error](func() {
		outputs := t.trainExec.Call(t.inputs.args()...)
		record.Train = Metrics{Loss: scalar(outputs[0]), Accuracy: scalar(outputs[1])}
		record.Val = Metrics{Loss: scalar(outputs[2]), Accuracy: scalar(outputs[3])}
		if !t.fastMode {
			record.Val = t.evaluate(Val)
		}
	})
	if err != nil {
		return record, errors.WithMessagef(err, "training epoch %d", epoch)
	}
	record.Duration = time.Since(start)
	return record, nil
}

func (t *Trainer) evaluate(split Split) Metrics {
	outputs := t.evalExec.Call(t.inputs.args()...)
	return Metrics{Loss: scalar(outputs[2*split]), Accuracy: scalar(outputs[2*split+1])}
}

// Evaluate runs the model in Evaluation mode and returns the metrics over the given split.
func (t *Trainer) Evaluate(split Split) (metrics Metrics, err error) {
	err = exceptions.TryCatch[error](func() {
		metrics = t.evaluate(split)
	})
	if err != nil {
		return metrics, errors.WithMessagef(err, "evaluating %s split", split)
	}
	return metrics, nil
}

// Run trains for the given number of epochs, calling hook (if not nil) after each one, and then
// evaluates the test split.
func (t *Trainer) Run(epochs int, hook func(EpochRecord)) (*Report, error) {
	if epochs < 0 {
		return nil, errors.Errorf("negative number of epochs %d", epochs)
	}
	report := &Report{Epochs: make([]EpochRecord, 0, epochs)}
	start := time.Now()
	for epoch := 1; epoch <= epochs; epoch++ {
		record, err := t.TrainEpoch(epoch)
		if err != nil {
			return report, err
		}
		report.Epochs = append(report.Epochs, record)
		if hook != nil {
			hook(record)
		}
	}
	report.Total = time.Since(start)
	var err error
	report.Test, err = t.Evaluate(Test)
	if err != nil {
		return report, err
	}
	return report, nil
}
