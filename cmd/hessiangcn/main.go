// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// hessiangcn trains a two-branch graph convolutional network on a Planetoid citation dataset: one branch
// propagates over the normalized adjacency matrix, the other over a rescaled Hessian matrix.
//
// Usage:
//
//	hessiangcn -data=./data -dataset=cora -set="epochs=200;hidden=32"
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/hessiangcn/hessiangcn/gcn"
	"github.com/hessiangcn/hessiangcn/hessian"
	"github.com/hessiangcn/hessiangcn/internal/settings"
	"github.com/hessiangcn/hessiangcn/planetoid"
	"github.com/hessiangcn/hessiangcn/ui/commandline"
	"github.com/hessiangcn/hessiangcn/ui/plots"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDataDir       = flag.String("data", "data", "Directory with the Planetoid dataset files (ind.<dataset>.*).")
	flagDataset       = flag.String("dataset", "", "Dataset name, overrides the \"dataset\" parameter.")
	flagHessian       = flag.String("hessian", "", "CSV file with the Hessian matrix. Defaults to <data>/<dataset>_hessian.csv.")
	flagBackend       = flag.String("backend", "", "Backend configuration, e.g. \"xla:cpu\", \"xla:cuda\" or \"go\". Defaults to $GOMLX_BACKEND or the best available.")
	flagNoAccelerator = flag.Bool("no_accelerator", false, "Use the pure Go backend, ignoring -backend.")
	flagFast          = flag.Bool("fast", false, "Skip the evaluation pass after each epoch, sets the \"fast_mode\" parameter.")
	flagConfig        = flag.String("config", "", "YAML file with hyperparameters, applied before -set.")
	flagSummary       = flag.Bool("summary", false, "Print a summary table at the end.")
	flagProgress      = flag.Bool("progress", false, "Show a progress bar instead of one line per epoch.")
	flagPlot          = flag.String("plot", "", "If set, save the training curves to this PNG file.")
	flagPlotPoints    = flag.String("plot_points", "", "If set, save the training curves points to this JSON file.")
)

// newBackend creates the one backend used for the whole session.
func newBackend() backends.Backend {
	switch {
	case *flagNoAccelerator:
		return must.M1(backends.NewWithConfig("go"))
	case *flagBackend != "":
		return must.M1(backends.NewWithConfig(*flagBackend))
	default:
		return backends.New()
	}
}

func main() {
	ctx := gcn.CreateDefaultContext()
	settingsFlag := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	var paramsSet []string
	if *flagConfig != "" {
		paramsSet = must.M1(settings.LoadFile(ctx, *flagConfig))
	}
	paramsSet = append(paramsSet, must.M1(commandline.ParseContextSettings(ctx, *settingsFlag))...)
	if *flagDataset != "" {
		ctx.SetParam(gcn.ParamDataset, *flagDataset)
		paramsSet = append(paramsSet, gcn.ParamDataset)
	}
	if *flagFast {
		ctx.SetParam(gcn.ParamFastMode, true)
		paramsSet = append(paramsSet, gcn.ParamFastMode)
	}
	if len(paramsSet) > 0 {
		klog.Infof("Parameters set:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}

	backend := newBackend()
	klog.Infof("Backend: %s", backend.Name())

	if err := run(backend, ctx); err != nil {
		klog.Fatalf("%+v", err)
	}
}

func run(backend backends.Backend, ctx *context.Context) error {
	name := context.GetParamOr(ctx, gcn.ParamDataset, "cora")
	dataset, err := planetoid.Load(os.DirFS(*flagDataDir), name)
	if err != nil {
		return err
	}
	klog.Infof("%s: %s", dataset, planetoid.GraphStats(dataset.RawAdjacency))

	hessianPath := *flagHessian
	if hessianPath == "" {
		hessianPath = filepath.Join(*flagDataDir, fmt.Sprintf("%s_hessian.csv", name))
	}
	rawHessian, err := hessian.Load(hessianPath)
	if err != nil {
		return err
	}
	if rows, _ := rawHessian.Dims(); rows != dataset.NumNodes() {
		return errors.Errorf("hessian %q has %d rows, but dataset %q has %d nodes",
			hessianPath, rows, name, dataset.NumNodes())
	}
	hessianOp, lambdaMax, err := hessian.Operator(rawHessian)
	if err != nil {
		return err
	}
	klog.Infof("Hessian: λ_max=%.6g, %d non-zeros", real(lambdaMax), hessianOp.NNZ())

	inputs, err := gcn.NewInputs(dataset.Features, dataset.Labels, dataset.Adjacency, hessianOp,
		dataset.Train, dataset.Val, dataset.Test)
	if err != nil {
		return err
	}
	trainer, err := gcn.NewTrainer(backend, ctx, inputs)
	if err != nil {
		return err
	}

	epochs := context.GetParamOr(ctx, gcn.ParamEpochs, 500)
	printer := commandline.NewEpochPrinter(os.Stdout)
	points := make(plots.Points)
	var progressBar *commandline.ProgressBar
	if *flagProgress {
		progressBar = commandline.NewProgressBar(epochs)
	}
	report, err := trainer.Run(epochs, func(r gcn.EpochRecord) {
		if progressBar != nil {
			progressBar.OnEpoch(r)
		} else {
			printer.OnEpoch(r)
		}
		points.OnEpoch(r)
	})
	if progressBar != nil {
		progressBar.Done()
	}
	if err != nil {
		return err
	}
	printer.PrintReport(report)

	if *flagSummary {
		commandline.PrintSummary(os.Stdout, commandline.Summary{
			Dataset:       name,
			Backend:       backend.Name(),
			NumNodes:      dataset.NumNodes(),
			NumParameters: trainer.Model().NumParameters(),
			Report:        report,
		})
	}
	if *flagPlotPoints != "" {
		if err := plots.SavePoints(*flagPlotPoints, points.Extract()); err != nil {
			return err
		}
	}
	if *flagPlot != "" && len(points) > 0 {
		if err := points.SavePNG(*flagPlot); err != nil {
			return err
		}
	}
	return nil
}
