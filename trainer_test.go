package onpolicy

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestTrainerPhases(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := testTrainerConfig()
	policy := newLinearPolicy(c, 2, 2)
	updater, err := NewUpdater(cfg, policy)
	if err != nil {
		t.Fatal(err)
	}

	var phases []Phase
	var updates []int
	var metrics bytes.Buffer
	reporter := &recordingReporter{}
	trainer := &Trainer{
		Config:   cfg,
		Policy:   policy,
		Updater:  updater,
		Envs:     newCountingEnv(c, cfg.NumProcesses, 2),
		Logger:   zerolog.Nop(),
		Metrics:  NewMetricsWriter(&metrics),
		Reporter: reporter,
		OnPhase: func(update int, p Phase) {
			phases = append(phases, p)
			updates = append(updates, update)
		},
	}
	if err := trainer.Run(nil); err != nil {
		t.Fatal(err)
	}

	numUpdates := cfg.NumUpdates()
	cycle := []Phase{Collecting, Bootstrapping, ComputingReturns, Updating, Resetting}
	if len(phases) != numUpdates*len(cycle) {
		t.Fatalf("expected %d phases but got %d", numUpdates*len(cycle), len(phases))
	}
	for i, p := range phases {
		if p != cycle[i%len(cycle)] {
			t.Errorf("phase %d: expected %s but got %s", i, cycle[i%len(cycle)], p)
		}
		if updates[i] != i/len(cycle) {
			t.Errorf("phase %d: expected update %d but got %d", i, i/len(cycle), updates[i])
		}
	}

	lines := strings.Split(strings.TrimSpace(metrics.String()), "\n")
	if len(lines) != numUpdates+1 || lines[0] != "update,reward" {
		t.Errorf("unexpected metrics: %q", metrics.String())
	}
	if len(reporter.progress) != numUpdates {
		t.Errorf("expected %d progress reports but got %d", numUpdates,
			len(reporter.progress))
	}
	for _, p := range reporter.progress {
		if p.MeanReward != 3 {
			t.Errorf("update %d: expected mean reward 3 but got %f", p.Update, p.MeanReward)
		}
	}
}

func TestTrainerContinuity(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := testTrainerConfig()
	policy := newLinearPolicy(c, 2, 2)
	updater, err := NewUpdater(cfg, policy)
	if err != nil {
		t.Fatal(err)
	}
	trainer := &Trainer{
		Config:  cfg,
		Policy:  policy,
		Updater: updater,
		Envs:    newCountingEnv(c, cfg.NumProcesses, 2),
		Logger:  zerolog.Nop(),
	}

	var lastObs []float64
	trainer.OnPhase = func(update int, p Phase) {
		r := trainer.Buffer()
		switch p {
		case Collecting:
			if lastObs != nil && !floatsEqual(r.Obs(0), lastObs) {
				t.Errorf("update %d: slot 0 does not continue the last cycle", update)
			}
		case Resetting:
			lastObs = append([]float64{}, r.Obs(cfg.NumSteps)...)
		}
	}
	if err := trainer.Run(nil); err != nil {
		t.Fatal(err)
	}
}

func TestTrainerStop(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := testTrainerConfig()
	policy := newLinearPolicy(c, 2, 2)
	updater, err := NewUpdater(cfg, policy)
	if err != nil {
		t.Fatal(err)
	}
	var numUpdates int
	trainer := &Trainer{
		Config:  cfg,
		Policy:  policy,
		Updater: updater,
		Envs:    newCountingEnv(c, cfg.NumProcesses, 2),
		Logger:  zerolog.Nop(),
		OnPhase: func(update int, p Phase) {
			if p == Updating {
				numUpdates++
			}
		},
	}
	stop := make(chan struct{})
	close(stop)
	if err := trainer.Run(stop); err != nil {
		t.Fatal(err)
	}
	if numUpdates != 1 {
		t.Errorf("expected 1 update but got %d", numUpdates)
	}
}

func TestTrainerEvaluation(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, episodeLen := range []int{3, 1000} {
		cfg := testTrainerConfig()
		cfg.EvalInterval = 2
		policy := newLinearPolicy(c, 2, 2)
		updater, err := NewUpdater(cfg, policy)
		if err != nil {
			t.Fatal(err)
		}
		envs := newCountingEnv(c, cfg.NumProcesses, 2)
		envs.episodeLen = episodeLen

		var numEnvs int
		reporter := &recordingReporter{}
		trainer := &Trainer{
			Config:   cfg,
			Policy:   policy,
			Updater:  updater,
			Envs:     envs,
			Logger:   zerolog.Nop(),
			Reporter: reporter,
			Evaluator: &Evaluator{
				Policy:  policy,
				Creator: c,
				MakeEnvs: func(s *RunningMeanStd) (VecEnv, error) {
					numEnvs++
					return newCountingEnv(c, 3, 2), nil
				},
				NumEpisodes: 3,
			},
		}
		if err := trainer.Run(nil); err != nil {
			t.Fatal(err)
		}

		// Updates 0, 2, and 4 evaluate once episodes have
		// finished.
		expected := 3
		if episodeLen == 1000 {
			expected = 0
		}
		if numEnvs != expected || len(reporter.evals) != expected {
			t.Errorf("episode length %d: expected %d evaluations but got %d (%d reported)",
				episodeLen, expected, numEnvs, len(reporter.evals))
		}
		for _, e := range reporter.evals {
			if e.MeanReward != 3 {
				t.Errorf("expected mean evaluation reward 3 but got %f", e.MeanReward)
			}
		}
	}
}

func TestTrainerRejectsRecurrentACKTR(t *testing.T) {
	cfg := testTrainerConfig()
	cfg.Algorithm = "acktr"
	cfg.RecurrentPolicy = true
	trainer := &Trainer{Config: cfg}
	if err := trainer.Run(nil); err == nil {
		t.Error("expected an error")
	}
}

func testTrainerConfig() *Config {
	cfg := DefaultConfig()
	cfg.Device = "float64"
	cfg.NumSteps = 4
	cfg.NumProcesses = 3
	cfg.NumFrames = 4 * 3 * 5
	cfg.SaveInterval = 0
	cfg.LogInterval = 1
	cfg.ReportPolicy = "episode"
	return cfg
}

type recordingReporter struct {
	progress []*Progress
	evals    []*EvalResult
}

func (r *recordingReporter) ReportProgress(p *Progress) {
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) ReportEvaluation(update int, e *EvalResult) {
	r.evals = append(r.evals, e)
}

// countingEnv is a VecEnv whose episodes always last
// episodeLen steps with a reward of 1 per step.
type countingEnv struct {
	creator    anyvec.Creator
	obsSize    int
	episodeLen int
	steps      []int
	gen        *rand.Rand
	closed     bool
}

func newCountingEnv(c anyvec.Creator, n, obsSize int) *countingEnv {
	return &countingEnv{
		creator:    c,
		obsSize:    obsSize,
		episodeLen: 3,
		steps:      make([]int, n),
		gen:        rand.New(rand.NewSource(1337)),
	}
}

func (c *countingEnv) Reset() (anyvec.Vector, error) {
	for i := range c.steps {
		c.steps[i] = 0
	}
	return randomVec(c.creator, c.gen, len(c.steps)*c.obsSize), nil
}

func (c *countingEnv) Step(actions anyvec.Vector) (*VecStep, error) {
	res := &VecStep{
		Obs:     randomVec(c.creator, c.gen, len(c.steps)*c.obsSize),
		Rewards: make([]float64, len(c.steps)),
		Dones:   make([]bool, len(c.steps)),
		Infos:   make([]EpisodeInfo, len(c.steps)),
	}
	for i := range c.steps {
		c.steps[i]++
		res.Rewards[i] = 1
		if c.steps[i] == c.episodeLen {
			res.Dones[i] = true
			res.Infos[i] = EpisodeInfo{
				Finished: true,
				Reward:   float64(c.episodeLen),
				Length:   c.episodeLen,
			}
			c.steps[i] = 0
		}
	}
	return res, nil
}

func (c *countingEnv) Close() error {
	c.closed = true
	return nil
}

func (c *countingEnv) NumEnvs() int {
	return len(c.steps)
}
