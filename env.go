package onpolicy

import "github.com/unixpickle/anyvec"

// A VecEnv is a batch of environments which are stepped
// in lockstep.
//
// Observations and actions are packed, with one block of
// components per environment.
type VecEnv interface {
	// Reset resets every environment and returns the
	// packed observations.
	Reset() (anyvec.Vector, error)

	// Step runs an action in every environment and blocks
	// until all of them finish.
	//
	// Environments which finish an episode are reset
	// automatically, and the resulting observation is the
	// first observation of the next episode.
	Step(actions anyvec.Vector) (*VecStep, error)

	// Close releases the environments' resources.
	Close() error

	// NumEnvs returns the number of environments.
	NumEnvs() int
}

// VecStep is the result of stepping a VecEnv.
type VecStep struct {
	Obs     anyvec.Vector
	Rewards []float64
	Dones   []bool

	// Infos contains one entry per environment.
	Infos []EpisodeInfo
}

// EpisodeInfo describes an episode which ended on a step.
//
// The reward is the raw total reward of the episode, even
// if the environment rescales step rewards.
type EpisodeInfo struct {
	Finished bool
	Reward   float64
	Length   int
}
