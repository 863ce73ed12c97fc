package experiments

import (
	"errors"
	"io"
	"math/rand"
	"strings"

	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/onpolicy"
)

// GymPrefix marks environment names which are served by
// an instance of gym-socket-api.
const GymPrefix = "gym:"

// Env is an environment with a Close() method for
// releasing the environment's resources.
type Env interface {
	io.Closer
	anyrl.Env
}

// CloseEnvs closes every environment in the list.
func CloseEnvs(envs []Env) {
	for _, e := range envs {
		e.Close()
	}
}

// EnvInfo stores information about an environment.
type EnvInfo struct {
	// Name of the environment.
	Name string

	// Number of discrete actions.
	NumActions int

	// Size of observation vectors, not including an added
	// timestep feature.
	ObsSize int

	// Gym is true for environments which are served by
	// gym-socket-api.
	Gym bool
}

var gymActionSizes = map[string]int{
	"CartPole-v0":    2,
	"CartPole-v1":    2,
	"Acrobot-v1":     3,
	"MountainCar-v0": 3,
	"LunarLander-v2": 4,
}

var gymObservationSizes = map[string]int{
	"CartPole-v0":    4,
	"CartPole-v1":    4,
	"Acrobot-v1":     6,
	"MountainCar-v0": 2,
	"LunarLander-v2": 8,
}

// LookupEnvInfo finds information about an environment
// based on its name.
func LookupEnvInfo(name string) (*EnvInfo, error) {
	if name == CartPoleName {
		return &EnvInfo{
			Name:       name,
			NumActions: 2,
			ObsSize:    4,
		}, nil
	}
	if strings.HasPrefix(name, GymPrefix) {
		gymName := strings.TrimPrefix(name, GymPrefix)
		numActions, ok1 := gymActionSizes[gymName]
		numObs, ok2 := gymObservationSizes[gymName]
		if ok1 && ok2 {
			return &EnvInfo{
				Name:       gymName,
				NumActions: numActions,
				ObsSize:    numObs,
				Gym:        true,
			}, nil
		}
	}
	return nil, errors.New("lookup environment: \"" + name + "\" not found")
}

// MakeEnvs creates n instances of the configured
// environment.
//
// Instance i is seeded with seed+i.
func MakeEnvs(c anyvec.Creator, cfg *onpolicy.Config, n int,
	seed int64) (envs []Env, err error) {
	defer essentials.AddCtxTo("make envs ("+cfg.EnvName+")", &err)
	info, err := LookupEnvInfo(cfg.EnvName)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var env Env
		if info.Gym {
			env, err = newGymEnv(c, cfg.GymHost, info.Name)
			if err != nil {
				CloseEnvs(envs)
				return nil, err
			}
		} else {
			gen := rand.New(rand.NewSource(seed + int64(i)))
			env = NewCartPole(c, gen)
		}
		if cfg.AddTimestep {
			env = &timestepEnv{Env: env}
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// MakeVecEnv creates a ParallelEnv with one instance of
// the configured environment per process.
//
// If observation normalization is enabled, the result is
// wrapped in a NormalizedEnv.
func MakeVecEnv(c anyvec.Creator, cfg *onpolicy.Config) (onpolicy.VecEnv, error) {
	envs, err := MakeEnvs(c, cfg, cfg.NumProcesses, cfg.Seed)
	if err != nil {
		return nil, err
	}
	var res onpolicy.VecEnv = NewParallelEnv(c, envs)
	if cfg.NormalizeObs {
		res = NewNormalizedEnv(res, cfg.Gamma)
	}
	return res, nil
}

// MakeEvalVecEnv creates environments for evaluation.
//
// The instances are seeded after the training instances
// from MakeVecEnv, so they never share a random stream.
// If stats is non-nil, observations are filtered with the
// statistics, which are never modified.
func MakeEvalVecEnv(c anyvec.Creator, cfg *onpolicy.Config,
	stats *onpolicy.RunningMeanStd) (onpolicy.VecEnv, error) {
	envs, err := MakeEnvs(c, cfg, cfg.NumProcesses, cfg.Seed+int64(cfg.NumProcesses))
	if err != nil {
		return nil, err
	}
	var res onpolicy.VecEnv = NewParallelEnv(c, envs)
	if stats != nil {
		res = NewEvalNormalizedEnv(res, stats)
	}
	return res, nil
}

// ObsSize returns the observation size the policy sees
// for the configured environment.
func ObsSize(cfg *onpolicy.Config) (int, error) {
	info, err := LookupEnvInfo(cfg.EnvName)
	if err != nil {
		return 0, err
	}
	if cfg.AddTimestep {
		return info.ObsSize + 1, nil
	}
	return info.ObsSize, nil
}

// timestepEnv appends the number of elapsed steps in the
// current episode to every observation.
type timestepEnv struct {
	Env

	timestep int
}

func (t *timestepEnv) Reset() (anyvec.Vector, error) {
	obs, err := t.Env.Reset()
	t.timestep = 0
	return t.nextObs(obs), err
}

func (t *timestepEnv) Step(action anyvec.Vector) (anyvec.Vector, float64, bool, error) {
	obs, rew, done, err := t.Env.Step(action)
	t.timestep++
	return t.nextObs(obs), rew, done, err
}

func (t *timestepEnv) nextObs(obs anyvec.Vector) anyvec.Vector {
	if obs == nil {
		return nil
	}
	c := obs.Creator()
	ts := c.MakeVectorData(c.MakeNumericList([]float64{float64(t.timestep)}))
	return c.Concat(obs, ts)
}
