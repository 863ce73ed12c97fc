package onpolicy

import (
	"errors"
	"math/rand"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

// ErrRecurrentACKTR is returned when ACKTR is configured
// with a recurrent policy.
var ErrRecurrentACKTR = errors.New("recurrent policy is not implemented for ACKTR")

// An Algorithm is an on-policy training algorithm.
type Algorithm int

const (
	A2CAlgorithm Algorithm = iota
	PPOAlgorithm
	ACKTRAlgorithm
)

// Algorithms contains every supported Algorithm.
var Algorithms = []Algorithm{A2CAlgorithm, PPOAlgorithm, ACKTRAlgorithm}

// String returns the name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case A2CAlgorithm:
		return "a2c"
	case PPOAlgorithm:
		return "ppo"
	case ACKTRAlgorithm:
		return "acktr"
	default:
		return ""
	}
}

// ParseAlgorithm finds an Algorithm by name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, errors.New("unknown algorithm: " + name)
}

// ParseReportPolicy finds a ReportPolicy by name.
func ParseReportPolicy(name string) (ReportPolicy, error) {
	for _, p := range []ReportPolicy{ReportOnTerminal, ReportEpisodeTotals} {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, errors.New("unknown report policy: " + name)
}

// Config stores the hyperparameters of a training run.
//
// A Config is created once and shared by pointer with
// every component of the run.
type Config struct {
	Algorithm string `mapstructure:"algo" yaml:"algo"`
	EnvName   string `mapstructure:"env-name" yaml:"env-name"`

	NumSteps     int `mapstructure:"num-steps" yaml:"num-steps"`
	NumProcesses int `mapstructure:"num-processes" yaml:"num-processes"`
	NumFrames    int `mapstructure:"num-frames" yaml:"num-frames"`

	// LR is not used by ACKTR, which steps with
	// ACKTRStepSize.
	LR    float64 `mapstructure:"lr" yaml:"lr"`
	Eps   float64 `mapstructure:"eps" yaml:"eps"`
	Alpha float64 `mapstructure:"alpha" yaml:"alpha"`

	Gamma  float64 `mapstructure:"gamma" yaml:"gamma"`
	Tau    float64 `mapstructure:"tau" yaml:"tau"`
	UseGAE bool    `mapstructure:"use-gae" yaml:"use-gae"`

	ClipParam           float64 `mapstructure:"clip-param" yaml:"clip-param"`
	PPOEpoch            int     `mapstructure:"ppo-epoch" yaml:"ppo-epoch"`
	NumMiniBatch        int     `mapstructure:"num-mini-batch" yaml:"num-mini-batch"`
	ClipValueLoss       bool    `mapstructure:"clip-value-loss" yaml:"clip-value-loss"`
	NormalizeAdvantages bool    `mapstructure:"normalize-advantages" yaml:"normalize-advantages"`

	ValueLossCoef float64 `mapstructure:"value-loss-coef" yaml:"value-loss-coef"`
	EntropyCoef   float64 `mapstructure:"entropy-coef" yaml:"entropy-coef"`
	MaxGradNorm   float64 `mapstructure:"max-grad-norm" yaml:"max-grad-norm"`

	RecurrentPolicy bool `mapstructure:"recurrent-policy" yaml:"recurrent-policy"`
	HiddenSize      int  `mapstructure:"hidden-size" yaml:"hidden-size"`

	SaveInterval int `mapstructure:"save-interval" yaml:"save-interval"`
	LogInterval  int `mapstructure:"log-interval" yaml:"log-interval"`
	EvalInterval int `mapstructure:"eval-interval" yaml:"eval-interval"`

	Seed   int64  `mapstructure:"seed" yaml:"seed"`
	Device string `mapstructure:"device" yaml:"device"`

	GymHost string `mapstructure:"gym-host" yaml:"gym-host"`

	SaveDir      string `mapstructure:"save-dir" yaml:"save-dir"`
	LogDir       string `mapstructure:"log-dir" yaml:"log-dir"`
	AddTimestep  bool   `mapstructure:"add-timestep" yaml:"add-timestep"`
	NormalizeObs bool   `mapstructure:"normalize-obs" yaml:"normalize-obs"`
	ReportPolicy string `mapstructure:"report-policy" yaml:"report-policy"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: "a2c",
		EnvName:   "CartPole",

		NumSteps:     5,
		NumProcesses: 16,
		NumFrames:    10000000,

		LR:    7e-4,
		Eps:   1e-5,
		Alpha: 0.99,

		Gamma:  0.99,
		Tau:    0.95,
		UseGAE: false,

		ClipParam:           0.2,
		PPOEpoch:            4,
		NumMiniBatch:        32,
		NormalizeAdvantages: true,

		ValueLossCoef: 0.5,
		EntropyCoef:   0.01,
		MaxGradNorm:   0.5,

		HiddenSize: 64,

		SaveInterval: 100,
		LogInterval:  10,

		Seed:   1,
		Device: "float32",

		GymHost: "localhost:5001",

		SaveDir:      "./trained_models/",
		LogDir:       "/tmp/gym/",
		NormalizeObs: true,
		ReportPolicy: "terminal",
	}
}

// Validate checks the configuration for errors which
// would prevent training from starting.
func (c *Config) Validate() error {
	algo, err := ParseAlgorithm(c.Algorithm)
	if err != nil {
		return err
	}
	if c.RecurrentPolicy && algo == ACKTRAlgorithm {
		return ErrRecurrentACKTR
	}
	if _, err := ParseReportPolicy(c.ReportPolicy); err != nil {
		return err
	}
	if c.NumSteps < 1 || c.NumProcesses < 1 {
		return errors.New("num-steps and num-processes must be positive")
	}
	if c.NumUpdates() < 1 {
		return errors.New("num-frames is smaller than a single update")
	}
	if algo == PPOAlgorithm {
		if c.PPOEpoch < 1 || c.NumMiniBatch < 1 {
			return errors.New("ppo-epoch and num-mini-batch must be positive")
		}
		if c.RecurrentPolicy && c.NumMiniBatch > c.NumProcesses {
			return ErrTooManyMinibatches
		}
		if c.NumMiniBatch > c.NumSteps*c.NumProcesses {
			return errors.New("num-mini-batch exceeds the number of samples per update")
		}
	}
	if c.Device != "float32" && c.Device != "float64" {
		return errors.New("unknown device: " + c.Device)
	}
	return nil
}

// NumUpdates returns the number of update cycles that fit
// in the frame budget.
func (c *Config) NumUpdates() int {
	return c.NumFrames / c.NumSteps / c.NumProcesses
}

// Creator returns the anyvec.Creator for the configured
// device.
func (c *Config) Creator() anyvec.Creator {
	if c.Device == "float64" {
		return anyvec64.DefaultCreator{}
	}
	return anyvec32.CurrentCreator()
}

// ACKTRStepSize is the step size used by ACKTR in place
// of Config.LR.
// The Fisher preconditioner's KL clip bounds its steps.
const ACKTRStepSize = 0.25

// NewUpdater creates the Updater for the configured
// algorithm.
func NewUpdater(c *Config, p Policy) (Updater, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	algo, _ := ParseAlgorithm(c.Algorithm)
	if p.Recurrent() && algo == ACKTRAlgorithm {
		return nil, ErrRecurrentACKTR
	}
	stepSize := c.LR
	if algo == ACKTRAlgorithm {
		stepSize = ACKTRStepSize
	}
	opt := &Optimizer{
		Params:      p.Parameters(),
		StepSize:    stepSize,
		MaxGradNorm: c.MaxGradNorm,
	}
	switch algo {
	case PPOAlgorithm:
		opt.Transformer = &anysgd.Adam{Damping: c.Eps}
		return &PPO{
			Policy:              p,
			Optimizer:           opt,
			Epsilon:             c.ClipParam,
			Epochs:              c.PPOEpoch,
			NumMiniBatch:        c.NumMiniBatch,
			ValueCoef:           c.ValueLossCoef,
			EntropyCoef:         c.EntropyCoef,
			ClipValueLoss:       c.ClipValueLoss,
			NormalizeAdvantages: c.NormalizeAdvantages,
			Rand:                rand.New(rand.NewSource(c.Seed)),
		}, nil
	case ACKTRAlgorithm:
		opt.Transformer = &FisherPreconditioner{StepSize: stepSize}
	default:
		opt.Transformer = &anysgd.RMSProp{DecayRate: c.Alpha, Damping: c.Eps}
	}
	return &A2C{
		Policy:      p,
		Optimizer:   opt,
		ValueCoef:   c.ValueLossCoef,
		EntropyCoef: c.EntropyCoef,
	}, nil
}
