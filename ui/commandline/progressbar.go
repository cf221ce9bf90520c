// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/hessiangcn/hessiangcn/gcn"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the minimum time between redraws of the progress bar.
const maxUpdateFrequency = 200 * time.Millisecond

// numStatsRows is the number of rows of the stats table drawn above the bar.
const numStatsRows = 4

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// ProgressBar shows the progress of training with a table of the latest metrics above it.
//
// Updates are drawn asynchronously, so a fast training loop is not slowed down by the terminal.
type ProgressBar struct {
	numEpochs int
	bar       *progressbar.ProgressBar
	out       io.Writer
	termenv   *termenv.Output

	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool

	durations        []time.Duration
	updates          chan progressBarUpdate
	asyncUpdatesDone sync.WaitGroup
}

type progressBarUpdate struct {
	record         gcn.EpochRecord
	medianDuration time.Duration
}

// NewProgressBar creates a progress bar for numEpochs epochs, drawn on os.Stdout.
func NewProgressBar(numEpochs int) *ProgressBar {
	return newProgressBar(numEpochs, os.Stdout)
}

func newProgressBar(numEpochs int, out io.Writer) *ProgressBar {
	pBar := &ProgressBar{
		numEpochs:     numEpochs,
		out:           out,
		termenv:       termenv.NewOutput(out),
		isFirstOutput: true,
		statsStyle:    lipgloss.NewStyle().PaddingLeft(8),
		updates:       make(chan progressBarUpdate, 100),
	}
	pBar.bar = progressbar.NewOptions(numEpochs,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("epochs"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(out),
	)
	pBar.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	pBar.asyncUpdatesDone.Add(1)
	go pBar.drawLoop()
	return pBar
}

// OnEpoch enqueues the record to be displayed. It can be used as the hook of gcn.Trainer.Run.
func (pBar *ProgressBar) OnEpoch(r gcn.EpochRecord) {
	pBar.durations = append(pBar.durations, r.Duration)
	sorted := slices.Clone(pBar.durations)
	slices.Sort(sorted)
	pBar.updates <- progressBarUpdate{record: r, medianDuration: sorted[len(sorted)/2]}
}

// Done waits for the pending updates to be drawn. The progress bar can't be used afterwards.
func (pBar *ProgressBar) Done() {
	close(pBar.updates)
	pBar.asyncUpdatesDone.Wait()
	pBar.termenv.ShowCursor()
	_, _ = fmt.Fprintln(pBar.out)
}

func (pBar *ProgressBar) drawLoop() {
	defer pBar.asyncUpdatesDone.Done()
	drawn := 0
	for update := range pBar.updates {
		// Skip to the latest update available.
	exhaust:
		for {
			select {
			case newUpdate, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				update = newUpdate
			default:
				break exhaust
			}
		}

		r := update.record
		pBar.statsTable.Data(lgtable.NewStringData())
		pBar.statsTable.Row("Epoch", fmt.Sprintf("%s of %s", humanize.Comma(int64(r.Epoch)), humanize.Comma(int64(pBar.numEpochs))))
		pBar.statsTable.Row("Median epoch duration", FormatDuration(update.medianDuration))
		pBar.statsTable.Row("Train", fmt.Sprintf("loss=%.4f acc=%.4f", r.Train.Loss, r.Train.Accuracy))
		pBar.statsTable.Row("Validation", fmt.Sprintf("loss=%.4f acc=%.4f", r.Val.Loss, r.Val.Accuracy))

		// Overwrite the previous table and bar.
		pBar.termenv.HideCursor()
		if !pBar.isFirstOutput {
			pBar.termenv.CursorPrevLine(numStatsRows + 2 + 1)
		}
		pBar.isFirstOutput = false
		_, _ = fmt.Fprintln(pBar.out, pBar.statsStyle.Render(pBar.statsTable.String()))
		_ = pBar.bar.Add(r.Epoch - drawn)
		drawn = r.Epoch
		_, _ = fmt.Fprintln(pBar.out)
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}
