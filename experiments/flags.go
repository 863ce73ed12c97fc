package experiments

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/unixpickle/onpolicy"
)

// AlgorithmFlag is a pflag.Value for an onpolicy
// algorithm.
type AlgorithmFlag struct {
	Algorithm onpolicy.Algorithm
}

// String returns the string representation of the
// algorithm.
func (a *AlgorithmFlag) String() string {
	return a.Algorithm.String()
}

// Set sets the algorithm from a string representation.
func (a *AlgorithmFlag) Set(s string) error {
	algo, err := onpolicy.ParseAlgorithm(s)
	if err != nil {
		return err
	}
	a.Algorithm = algo
	return nil
}

// Type returns the name of the flag's type.
func (a *AlgorithmFlag) Type() string {
	return "algorithm"
}

// AddFlag adds the flag to a flag set.
func (a *AlgorithmFlag) AddFlag(f *pflag.FlagSet) {
	var names []string
	for _, algo := range onpolicy.Algorithms {
		names = append(names, algo.String())
	}
	f.Var(a, "algo", "training algorithm ("+strings.Join(names, ", ")+")")
}

// AddConfigFlags adds a flag for every field of the
// configuration, using the configuration's values as
// defaults.
//
// Flag names match the configuration keys.
func AddConfigFlags(f *pflag.FlagSet, c *onpolicy.Config) {
	f.String("env-name", c.EnvName, "environment to train on ("+CartPoleName+
		" or "+GymPrefix+"<gym name>)")

	f.Int("num-steps", c.NumSteps, "forward steps per update")
	f.Int("num-processes", c.NumProcesses, "parallel environments")
	f.Int("num-frames", c.NumFrames, "total environment steps to train for")

	f.Float64("lr", c.LR, "learning rate")
	f.Float64("eps", c.Eps, "optimizer epsilon")
	f.Float64("alpha", c.Alpha, "RMSProp decay rate")

	f.Float64("gamma", c.Gamma, "discount factor")
	f.Float64("tau", c.Tau, "GAE lambda")
	f.Bool("use-gae", c.UseGAE, "use generalized advantage estimation")

	f.Float64("clip-param", c.ClipParam, "PPO clip parameter")
	f.Int("ppo-epoch", c.PPOEpoch, "PPO epochs per update")
	f.Int("num-mini-batch", c.NumMiniBatch, "PPO minibatches per epoch")
	f.Bool("clip-value-loss", c.ClipValueLoss, "clip the PPO value loss")
	f.Bool("normalize-advantages", c.NormalizeAdvantages, "normalize PPO advantages")

	f.Float64("value-loss-coef", c.ValueLossCoef, "value loss coefficient")
	f.Float64("entropy-coef", c.EntropyCoef, "entropy bonus coefficient")
	f.Float64("max-grad-norm", c.MaxGradNorm, "gradient norm limit")

	f.Bool("recurrent-policy", c.RecurrentPolicy, "use a recurrent policy")
	f.Int("hidden-size", c.HiddenSize, "hidden layer size")

	f.Int("save-interval", c.SaveInterval, "updates between checkpoints")
	f.Int("log-interval", c.LogInterval, "updates between progress reports")
	f.Int("eval-interval", c.EvalInterval, "updates between evaluations (0 to disable)")

	f.Int64("seed", c.Seed, "random seed")
	f.String("device", c.Device, "numeric type (float32 or float64)")
	f.String("gym-host", c.GymHost, "host for gym-socket-api")

	f.String("save-dir", c.SaveDir, "checkpoint root directory")
	f.String("log-dir", c.LogDir, "directory for progress CSV files")
	f.Bool("add-timestep", c.AddTimestep, "add the timestep to observations")
	f.Bool("normalize-obs", c.NormalizeObs, "normalize observations and rewards")
	f.String("report-policy", c.ReportPolicy, "reward history policy (terminal or episode)")
}
