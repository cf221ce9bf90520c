// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/hessiangcn/hessiangcn/gcn"
)

// Summary of a training session, printed as a table by PrintSummary.
type Summary struct {
	Dataset       string
	Backend       string
	NumNodes      int
	NumParameters int
	Report        *gcn.Report
}

// SummaryTable renders the summary as a table with rounded borders.
func SummaryTable(s Summary) string {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	table.Row("Dataset", s.Dataset)
	table.Row("Backend", s.Backend)
	table.Row("Nodes", humanize.Comma(int64(s.NumNodes)))
	table.Row("Parameters", humanize.Comma(int64(s.NumParameters)))
	if r := s.Report; r != nil {
		table.Row("Epochs", humanize.Comma(int64(len(r.Epochs))))
		if n := len(r.Epochs); n > 0 {
			last := r.Epochs[n-1]
			table.Row("Final train", fmt.Sprintf("loss=%.4f acc=%.4f", last.Train.Loss, last.Train.Accuracy))
			table.Row("Final validation", fmt.Sprintf("loss=%.4f acc=%.4f", last.Val.Loss, last.Val.Accuracy))
			table.Row("Mean epoch duration", FormatDuration(r.Total/time.Duration(n)))
		}
		table.Row("Total training time", FormatDuration(r.Total))
		table.Row("Test", fmt.Sprintf("loss=%.4f acc=%.4f", r.Test.Loss, r.Test.Accuracy))
	}
	return table.String()
}

// PrintSummary writes the summary table to w.
func PrintSummary(w io.Writer, s Summary) {
	_, _ = fmt.Fprintln(w, SummaryTable(s))
}
