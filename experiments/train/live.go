package main

import (
	"fmt"
	"time"

	"github.com/gosuri/uilive"
	"github.com/logrusorgru/aurora"
	"github.com/unixpickle/onpolicy"
)

// liveReporter redraws a progress summary in place.
type liveReporter struct {
	numUpdates int
	writer     *uilive.Writer
	progress   *onpolicy.Progress
	lastEval   *onpolicy.EvalResult
}

func newLiveReporter(numUpdates int) *liveReporter {
	w := uilive.New()
	w.Start()
	return &liveReporter{numUpdates: numUpdates, writer: w}
}

func (l *liveReporter) ReportProgress(p *onpolicy.Progress) {
	l.progress = p
	l.redraw()
}

func (l *liveReporter) ReportEvaluation(update int, e *onpolicy.EvalResult) {
	l.lastEval = e
	l.redraw()
}

func (l *liveReporter) Stop() {
	l.writer.Stop()
}

func (l *liveReporter) redraw() {
	p := l.progress
	if p == nil {
		return
	}
	fmt.Fprintf(l.writer, "%s %d/%d, timesteps %d, FPS %d, elapsed %s\n",
		aurora.Bold("Update"), p.Update, l.numUpdates, p.Timesteps, p.FPS,
		p.Elapsed.Truncate(time.Second))
	fmt.Fprintf(l.writer.Newline(),
		"Last %d episodes: mean %s, median %.2f, min %.2f, max %.2f, success %.2f\n",
		p.Episodes, aurora.Green(fmt.Sprintf("%.2f", p.MeanReward)), p.Median, p.Min,
		p.Max, p.Success)
	if p.Stats != nil {
		fmt.Fprintf(l.writer.Newline(), "Losses: value %.4f, action %.4f, entropy %.4f\n",
			p.Stats.ValueLoss, p.Stats.ActionLoss, p.Stats.Entropy)
	}
	if l.lastEval != nil {
		fmt.Fprintf(l.writer.Newline(), "Evaluation: %d episodes, mean reward %s\n",
			len(l.lastEval.Rewards),
			aurora.Cyan(fmt.Sprintf("%.2f", l.lastEval.MeanReward)))
	}
	l.writer.Flush()
}
