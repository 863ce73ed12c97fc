package experiments

import (
	"math"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/onpolicy"
)

// Default parameters for a NormalizedEnv.
const (
	DefaultObsClip    = 10.0
	DefaultRewardClip = 10.0
	DefaultNormEps    = 1e-8
)

// NormalizedEnv normalizes the observations and rewards
// of a VecEnv.
//
// In training mode, observation statistics are updated on
// every step, and rewards are divided by the standard
// deviation of a discounted running return.
// In evaluation mode, observations are filtered with fixed
// statistics and rewards pass through unchanged.
type NormalizedEnv struct {
	onpolicy.VecEnv

	// Gamma is the discount used for the running return.
	Gamma float64

	ObsClip    float64
	RewardClip float64
	Epsilon    float64

	obsStats *onpolicy.RunningMeanStd
	retStats *onpolicy.RunningMeanStd
	returns  []float64
	training bool
}

// NewNormalizedEnv creates a NormalizedEnv in training
// mode.
func NewNormalizedEnv(env onpolicy.VecEnv, gamma float64) *NormalizedEnv {
	return &NormalizedEnv{
		VecEnv:     env,
		Gamma:      gamma,
		ObsClip:    DefaultObsClip,
		RewardClip: DefaultRewardClip,
		Epsilon:    DefaultNormEps,
		retStats:   onpolicy.NewRunningMeanStd(1),
		returns:    make([]float64, env.NumEnvs()),
		training:   true,
	}
}

// NewEvalNormalizedEnv creates a NormalizedEnv in
// evaluation mode.
//
// The statistics are only read.
func NewEvalNormalizedEnv(env onpolicy.VecEnv,
	stats *onpolicy.RunningMeanStd) *NormalizedEnv {
	return &NormalizedEnv{
		VecEnv:     env,
		ObsClip:    DefaultObsClip,
		RewardClip: DefaultRewardClip,
		Epsilon:    DefaultNormEps,
		obsStats:   stats,
	}
}

// ObsStats returns the observation statistics.
//
// In training mode, this is nil until the first Reset.
func (n *NormalizedEnv) ObsStats() *onpolicy.RunningMeanStd {
	return n.obsStats
}

// SetObsStats replaces the observation statistics, for
// example with statistics from a checkpoint.
func (n *NormalizedEnv) SetObsStats(stats *onpolicy.RunningMeanStd) {
	n.obsStats = stats
}

// Reset resets the environments and normalizes the
// resulting observations.
func (n *NormalizedEnv) Reset() (anyvec.Vector, error) {
	obs, err := n.VecEnv.Reset()
	if err != nil {
		return nil, err
	}
	for i := range n.returns {
		n.returns[i] = 0
	}
	return n.filterObs(obs), nil
}

// Step steps the environments and normalizes the result.
func (n *NormalizedEnv) Step(actions anyvec.Vector) (*onpolicy.VecStep, error) {
	res, err := n.VecEnv.Step(actions)
	if err != nil {
		return nil, err
	}
	res.Obs = n.filterObs(res.Obs)
	if n.training {
		res.Rewards = n.scaleRewards(res.Rewards, res.Dones)
	}
	return res, nil
}

func (n *NormalizedEnv) filterObs(obs anyvec.Vector) anyvec.Vector {
	rows := splitRows(vecToFloats(obs), n.NumEnvs())
	if n.obsStats == nil {
		n.obsStats = onpolicy.NewRunningMeanStd(len(rows[0]))
	}
	if n.training {
		n.obsStats.Update(rows)
	}
	var joined []float64
	for _, row := range rows {
		joined = append(joined, n.obsStats.Filter(row, n.ObsClip, n.Epsilon)...)
	}
	return floatsToVec(obs.Creator(), joined)
}

func (n *NormalizedEnv) scaleRewards(rewards []float64, dones []bool) []float64 {
	batch := make([][]float64, len(rewards))
	for i, r := range rewards {
		n.returns[i] = n.returns[i]*n.Gamma + r
		batch[i] = []float64{n.returns[i]}
	}
	n.retStats.Update(batch)
	std := math.Sqrt(n.retStats.Var[0] + n.Epsilon)
	res := make([]float64, len(rewards))
	for i, r := range rewards {
		res[i] = math.Max(-n.RewardClip, math.Min(n.RewardClip, r/std))
		if dones[i] {
			n.returns[i] = 0
		}
	}
	return res
}
