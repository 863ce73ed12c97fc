package onpolicy

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/unixpickle/essentials"
)

// A Phase is a stage of a training cycle.
type Phase int

const (
	Collecting Phase = iota
	Bootstrapping
	ComputingReturns
	Updating
	Resetting
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case Collecting:
		return "collecting"
	case Bootstrapping:
		return "bootstrapping"
	case ComputingReturns:
		return "computing returns"
	case Updating:
		return "updating"
	case Resetting:
		return "resetting"
	default:
		return ""
	}
}

// A Trainer runs the on-policy training loop: it collects
// a fixed number of steps from every environment, computes
// returns, updates the policy, and repeats.
type Trainer struct {
	Config  *Config
	Policy  Policy
	Updater Updater
	Envs    VecEnv

	// Recorder tracks recent episode rewards.
	// If nil, one is created from Config.ReportPolicy.
	Recorder *EpisodeRecorder

	// Checkpointer, if non-nil, is used every
	// Config.SaveInterval updates.
	Checkpointer *Checkpointer

	// Evaluator, if non-nil, is used every
	// Config.EvalInterval updates.
	Evaluator *Evaluator

	// Metrics, if non-nil, receives a row per update.
	Metrics *MetricsWriter

	// Reporter, if non-nil, receives progress every
	// Config.LogInterval updates.
	Reporter Reporter

	// OnPhase, if non-nil, is called when a phase begins.
	OnPhase func(update int, p Phase)

	Logger zerolog.Logger

	buffer *RolloutBuffer
}

// Buffer returns the trainer's RolloutBuffer.
// It is nil until Run is called.
func (t *Trainer) Buffer() *RolloutBuffer {
	return t.buffer
}

// Run trains for Config.NumUpdates() updates.
//
// The stop channel is checked between updates.
// If it is closed, Run saves a final checkpoint and
// returns early.
func (t *Trainer) Run(stop <-chan struct{}) (err error) {
	defer essentials.AddCtxTo("train", &err)

	cfg := t.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if t.Recorder == nil {
		policy, _ := ParseReportPolicy(cfg.ReportPolicy)
		t.Recorder = &EpisodeRecorder{
			Policy:  policy,
			History: NewRewardHistory(DefaultHistoryCapacity),
		}
	}

	obs, err := t.Envs.Reset()
	if err != nil {
		return essentials.AddCtx("reset environments", err)
	}
	n := t.Envs.NumEnvs()
	t.buffer = NewRolloutBuffer(cfg.Creator(), cfg.NumSteps, n, obs.Len()/n,
		t.Policy.ActionSize(), t.Policy.HiddenSize())
	if err := t.buffer.SetInitialObs(obs); err != nil {
		return err
	}

	start := time.Now()
	numUpdates := cfg.NumUpdates()
	for update := 0; update < numUpdates; update++ {
		stats, err := t.cycle(update)
		if err != nil {
			return err
		}

		if cfg.SaveInterval > 0 && update%cfg.SaveInterval == 0 {
			if err := t.save(); err != nil {
				return err
			}
		}

		timesteps := (update + 1) * n * cfg.NumSteps
		history := t.Recorder.History
		if t.Metrics != nil {
			if err := t.Metrics.WriteRow(update, history.Mean()); err != nil {
				return essentials.AddCtx("write metrics", err)
			}
		}
		if t.Reporter != nil && cfg.LogInterval > 0 && update%cfg.LogInterval == 0 &&
			history.Len() > 1 {
			t.Reporter.ReportProgress(NewProgress(update, timesteps, time.Since(start),
				history, stats))
		}
		if t.Evaluator != nil && cfg.EvalInterval > 0 && update%cfg.EvalInterval == 0 &&
			history.Len() > 1 {
			res, err := t.Evaluator.Evaluate()
			if err != nil {
				return err
			}
			if t.Reporter != nil {
				t.Reporter.ReportEvaluation(update, res)
			}
		}

		select {
		case <-stop:
			t.Logger.Info().Int("update", update).Msg("stopping early")
			return t.save()
		default:
		}
	}
	return nil
}

// cycle runs one collect-update cycle.
func (t *Trainer) cycle(update int) (*UpdateStats, error) {
	cfg := t.Config
	r := t.buffer

	t.enterPhase(update, Collecting)
	for step := 0; step < cfg.NumSteps; step++ {
		out := t.Policy.Act(r.ObsVector(step), r.HiddenVector(step), r.MasksVector(step),
			false)
		res, err := t.Envs.Step(out.Actions)
		if err != nil {
			return nil, essentials.AddCtx("step environments", err)
		}
		t.Recorder.Record(res.Rewards, res.Dones)
		err = r.Insert(step, res.Obs, out.Hidden, out.Actions, out.LogProbs, out.Values,
			res.Rewards, doneMasks(res.Dones))
		if err != nil {
			return nil, err
		}
	}

	t.enterPhase(update, Bootstrapping)
	last := cfg.NumSteps
	next := t.Policy.Value(r.ObsVector(last), r.HiddenVector(last), r.MasksVector(last))

	t.enterPhase(update, ComputingReturns)
	if err := r.ComputeReturns(next, cfg.UseGAE, cfg.Gamma, cfg.Tau); err != nil {
		return nil, err
	}

	t.enterPhase(update, Updating)
	stats, err := t.Updater.Update(r)
	if err != nil {
		return nil, err
	}

	t.enterPhase(update, Resetting)
	r.AfterUpdate()
	return stats, nil
}

func (t *Trainer) enterPhase(update int, p Phase) {
	t.Logger.Debug().Int("update", update).Stringer("phase", p).Msg("phase")
	if t.OnPhase != nil {
		t.OnPhase(update, p)
	}
}

func (t *Trainer) save() error {
	if t.Checkpointer == nil {
		return nil
	}
	var stats *RunningMeanStd
	if provider, ok := t.Envs.(NormalizationProvider); ok {
		stats = provider.ObsStats()
	}
	t.Logger.Info().Str("path", t.Checkpointer.Path()).Msg("saving model")
	return t.Checkpointer.Save(t.Policy, stats)
}
