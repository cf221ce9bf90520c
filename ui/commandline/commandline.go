// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline prints the progress and results of a training session to the terminal, and parses
// hyperparameter settings given in the command line.
package commandline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hessiangcn/hessiangcn/gcn"
)

// EpochPrinter writes one line per epoch, and the final lines of a training session.
type EpochPrinter struct {
	w io.Writer
}

// NewEpochPrinter returns a printer to w, or to os.Stdout if w is nil.
func NewEpochPrinter(w io.Writer) *EpochPrinter {
	if w == nil {
		w = os.Stdout
	}
	return &EpochPrinter{w: w}
}

// seconds formats d as seconds with 4 decimal places.
func seconds(d time.Duration) string {
	return fmt.Sprintf("%.4fs", d.Seconds())
}

// OnEpoch prints the epoch record. It can be used as the hook of gcn.Trainer.Run.
func (p *EpochPrinter) OnEpoch(r gcn.EpochRecord) {
	_, _ = fmt.Fprintf(p.w, "Epoch: %04d loss_train: %.4f acc_train: %.4f loss_val: %.4f acc_val: %.4f time: %s\n",
		r.Epoch, r.Train.Loss, r.Train.Accuracy, r.Val.Loss, r.Val.Accuracy, seconds(r.Duration))
}

// PrintFinished prints the end of the optimization and the total time elapsed.
func (p *EpochPrinter) PrintFinished(total time.Duration) {
	_, _ = fmt.Fprintln(p.w, "Optimization Finished!")
	_, _ = fmt.Fprintf(p.w, "Total time elapsed: %s\n", seconds(total))
}

// PrintTest prints the metrics over the test split.
func (p *EpochPrinter) PrintTest(test gcn.Metrics) {
	_, _ = fmt.Fprintf(p.w, "Test set results: loss= %.4f accuracy= %.4f\n", test.Loss, test.Accuracy)
}

// PrintReport prints the final lines of a report.
func (p *EpochPrinter) PrintReport(report *gcn.Report) {
	p.PrintFinished(report.Total)
	p.PrintTest(report.Test)
}
