package onpolicy

import (
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/stat"
)

// DefaultEvalEpisodes is the number of episodes used by an
// Evaluator if none is specified.
const DefaultEvalEpisodes = 10

// An Evaluator measures the performance of a Policy on a
// separate set of environments using deterministic
// actions.
type Evaluator struct {
	Policy  Policy
	Creator anyvec.Creator

	// MakeEnvs creates the evaluation environments.
	//
	// The statistics are the training observation
	// statistics, or nil if the training environments do
	// not normalize observations.
	// They must only be read.
	MakeEnvs func(stats *RunningMeanStd) (VecEnv, error)

	// Normalization, if non-nil, provides the statistics
	// passed to MakeEnvs.
	Normalization NormalizationProvider

	// NumEpisodes is the number of episodes to complete.
	//
	// If 0, DefaultEvalEpisodes is used.
	NumEpisodes int
}

// EvalResult summarizes an evaluation.
type EvalResult struct {
	Rewards    []float64
	MeanReward float64
}

// Evaluate runs the policy until enough episodes finish.
func (e *Evaluator) Evaluate() (res *EvalResult, err error) {
	defer essentials.AddCtxTo("evaluate", &err)

	var stats *RunningMeanStd
	if e.Normalization != nil {
		stats = e.Normalization.ObsStats()
	}
	envs, err := e.MakeEnvs(stats)
	if err != nil {
		return nil, err
	}
	defer envs.Close()

	obs, err := envs.Reset()
	if err != nil {
		return nil, err
	}
	n := envs.NumEnvs()
	hidden := e.Creator.MakeVector(n * e.Policy.HiddenSize())
	masks := e.Creator.MakeVector(n)

	var rewards []float64
	for len(rewards) < e.numEpisodes() {
		out := e.Policy.Act(obs, hidden, masks, true)
		step, err := envs.Step(out.Actions)
		if err != nil {
			return nil, err
		}
		obs = step.Obs
		hidden = out.Hidden
		masks = floatsToVec(e.Creator, doneMasks(step.Dones))
		for _, info := range step.Infos {
			if info.Finished {
				rewards = append(rewards, info.Reward)
			}
		}
	}
	return &EvalResult{
		Rewards:    rewards,
		MeanReward: stat.Mean(rewards, nil),
	}, nil
}

func (e *Evaluator) numEpisodes() int {
	if e.NumEpisodes == 0 {
		return DefaultEvalEpisodes
	}
	return e.NumEpisodes
}

// doneMasks converts done flags to masks.
func doneMasks(dones []bool) []float64 {
	res := make([]float64, len(dones))
	for i, done := range dones {
		if !done {
			res[i] = 1
		}
	}
	return res
}
