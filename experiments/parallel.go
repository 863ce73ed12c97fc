package experiments

import (
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/onpolicy"
	"golang.org/x/sync/errgroup"
)

// ParallelEnv runs a batch of environments concurrently,
// with one goroutine per environment per step.
//
// Environments are reset automatically when their
// episodes end, and the total reward and length of every
// finished episode is reported in the step's infos.
type ParallelEnv struct {
	Creator anyvec.Creator
	Envs    []Env

	rewards    []float64
	lengths    []int
	lastResets []anyvec.Vector
}

// NewParallelEnv creates a ParallelEnv which owns the
// environments.
func NewParallelEnv(c anyvec.Creator, envs []Env) *ParallelEnv {
	return &ParallelEnv{
		Creator:    c,
		Envs:       envs,
		rewards:    make([]float64, len(envs)),
		lengths:    make([]int, len(envs)),
		lastResets: make([]anyvec.Vector, len(envs)),
	}
}

// NumEnvs returns the number of environments.
func (p *ParallelEnv) NumEnvs() int {
	return len(p.Envs)
}

// Reset resets every environment.
func (p *ParallelEnv) Reset() (obs anyvec.Vector, err error) {
	defer essentials.AddCtxTo("reset parallel envs", &err)
	var g errgroup.Group
	for i, env := range p.Envs {
		i, env := i, env
		g.Go(func() error {
			obs, err := env.Reset()
			if err != nil {
				return err
			}
			p.lastResets[i] = obs
			p.rewards[i] = 0
			p.lengths[i] = 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p.Creator.Concat(p.lastResets...), nil
}

// Step runs one action in every environment.
func (p *ParallelEnv) Step(actions anyvec.Vector) (res *onpolicy.VecStep, err error) {
	defer essentials.AddCtxTo("step parallel envs", &err)
	if actions.Len()%len(p.Envs) != 0 {
		return nil, fmt.Errorf("action size %d is not divisible by %d environments",
			actions.Len(), len(p.Envs))
	}
	actionSize := actions.Len() / len(p.Envs)

	res = &onpolicy.VecStep{
		Rewards: make([]float64, len(p.Envs)),
		Dones:   make([]bool, len(p.Envs)),
		Infos:   make([]onpolicy.EpisodeInfo, len(p.Envs)),
	}
	observations := make([]anyvec.Vector, len(p.Envs))

	var g errgroup.Group
	for i, env := range p.Envs {
		i, env := i, env
		action := actions.Slice(i*actionSize, (i+1)*actionSize)
		g.Go(func() error {
			obs, reward, done, err := env.Step(action)
			if err != nil {
				return err
			}
			p.rewards[i] += reward
			p.lengths[i]++
			res.Rewards[i] = reward
			res.Dones[i] = done
			if done {
				res.Infos[i] = onpolicy.EpisodeInfo{
					Finished: true,
					Reward:   p.rewards[i],
					Length:   p.lengths[i],
				}
				p.rewards[i] = 0
				p.lengths[i] = 0
				obs, err = env.Reset()
				if err != nil {
					return err
				}
			}
			observations[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Obs = p.Creator.Concat(observations...)
	return res, nil
}

// Close closes every environment.
func (p *ParallelEnv) Close() error {
	var firstErr error
	for _, env := range p.Envs {
		if err := env.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
