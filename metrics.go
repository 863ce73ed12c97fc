package onpolicy

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// A MetricsWriter writes one CSV row per update cycle.
type MetricsWriter struct {
	w             *csv.Writer
	flusher       func() error
	headerWritten bool
}

// NewMetricsWriter creates a MetricsWriter.
//
// If the writer has a Sync method (like *os.File), it is
// synced after every row.
func NewMetricsWriter(w io.Writer) *MetricsWriter {
	res := &MetricsWriter{w: csv.NewWriter(w)}
	if s, ok := w.(interface{ Sync() error }); ok {
		res.flusher = s.Sync
	}
	return res
}

// WriteRow records the mean recent reward for an update.
func (m *MetricsWriter) WriteRow(update int, meanReward float64) error {
	if !m.headerWritten {
		if err := m.w.Write([]string{"update", "reward"}); err != nil {
			return err
		}
		m.headerWritten = true
	}
	row := []string{
		strconv.Itoa(update),
		strconv.FormatFloat(meanReward, 'g', -1, 64),
	}
	if err := m.w.Write(row); err != nil {
		return err
	}
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		return err
	}
	if m.flusher != nil {
		return m.flusher()
	}
	return nil
}

// Progress summarizes the state of training after an
// update.
type Progress struct {
	Update     int
	Timesteps  int
	FPS        int
	Elapsed    time.Duration
	Episodes   int
	MeanReward float64
	Median     float64
	Min        float64
	Max        float64
	Success    float64
	Stats      *UpdateStats
}

// NewProgress summarizes the reward history after an
// update.
func NewProgress(update, timesteps int, elapsed time.Duration, h *RewardHistory,
	stats *UpdateStats) *Progress {
	var fps int
	if elapsed > 0 {
		fps = int(float64(timesteps) / elapsed.Seconds())
	}
	return &Progress{
		Update:     update,
		Timesteps:  timesteps,
		FPS:        fps,
		Elapsed:    elapsed,
		Episodes:   h.Len(),
		MeanReward: h.Mean(),
		Median:     h.Median(),
		Min:        h.Min(),
		Max:        h.Max(),
		Success:    h.PositiveFraction(),
		Stats:      stats,
	}
}

// A Reporter presents progress to the user.
type Reporter interface {
	ReportProgress(p *Progress)
	ReportEvaluation(update int, e *EvalResult)
}

// LogReporter reports progress with a zerolog.Logger.
type LogReporter struct {
	Logger zerolog.Logger
}

// ReportProgress logs a training summary.
func (l *LogReporter) ReportProgress(p *Progress) {
	l.Logger.Info().
		Int("update", p.Update).
		Int("timesteps", p.Timesteps).
		Int("fps", p.FPS).
		Int("episodes", p.Episodes).
		Float64("mean", p.MeanReward).
		Float64("median", p.Median).
		Float64("min", p.Min).
		Float64("max", p.Max).
		Float64("success_rate", p.Success).
		Float64("value_loss", p.Stats.ValueLoss).
		Float64("action_loss", p.Stats.ActionLoss).
		Float64("entropy", p.Stats.Entropy).
		Msg("training progress")
}

// ReportEvaluation logs an evaluation result.
func (l *LogReporter) ReportEvaluation(update int, e *EvalResult) {
	l.Logger.Info().
		Int("update", update).
		Int("episodes", len(e.Rewards)).
		Float64("mean_reward", e.MeanReward).
		Msg("evaluation")
}
