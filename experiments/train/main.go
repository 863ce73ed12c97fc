// Command train trains an actor-critic policy with A2C,
// PPO, or ACKTR.
package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/onpolicy"
	"github.com/unixpickle/onpolicy/experiments"
	"github.com/unixpickle/rip"
	"gopkg.in/yaml.v3"
)

type Flags struct {
	ConfigFile string
	LoadFile   string
	Live       bool
	Verbose    bool
	Algorithm  experiments.AlgorithmFlag
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		essentials.Die(err)
	}
}

func rootCommand() *cobra.Command {
	flags := &Flags{}
	defaults := onpolicy.DefaultConfig()
	flags.Algorithm.Set(defaults.Algorithm)

	cmd := &cobra.Command{
		Use:           "train",
		Short:         "Train a policy with an on-policy algorithm",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return train(cfg, flags)
		},
	}
	f := cmd.Flags()
	flags.Algorithm.AddFlag(f)
	experiments.AddConfigFlags(f, defaults)
	f.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	f.StringVar(&flags.LoadFile, "load", "", "checkpoint to resume from")
	f.BoolVar(&flags.Live, "live", true, "show a live progress display")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "log every training phase")
	return cmd
}

// loadConfig merges the defaults, an optional config
// file, and any flags which were set explicitly.
func loadConfig(cmd *cobra.Command, flags *Flags) (*onpolicy.Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if flags.ConfigFile != "" {
		v.SetConfigFile(flags.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, essentials.AddCtx("read config", err)
		}
	}
	cfg := onpolicy.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, essentials.AddCtx("decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func train(cfg *onpolicy.Config, flags *Flags) error {
	level := zerolog.InfoLevel
	if flags.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	rand.Seed(cfg.Seed)
	creator := cfg.Creator()

	logger.Info().Str("env", cfg.EnvName).Int("processes", cfg.NumProcesses).
		Msg("creating environments")
	envs, err := experiments.MakeVecEnv(creator, cfg)
	if err != nil {
		return err
	}
	defer envs.Close()

	policy, err := loadOrCreatePolicy(creator, cfg, flags, envs, logger)
	if err != nil {
		return err
	}
	updater, err := onpolicy.NewUpdater(cfg, policy)
	if err != nil {
		return err
	}

	start := time.Now()
	runDir := onpolicy.CheckpointDir(cfg.SaveDir, cfg, start)
	if err := recordConfig(runDir, cfg); err != nil {
		return err
	}
	metricsFile, err := createMetricsFile(cfg, start)
	if err != nil {
		return err
	}
	defer metricsFile.Close()

	trainer := &onpolicy.Trainer{
		Config:  cfg,
		Policy:  policy,
		Updater: updater,
		Envs:    envs,
		Checkpointer: &onpolicy.Checkpointer{
			Dir:     runDir,
			EnvName: cfg.EnvName,
		},
		Metrics: onpolicy.NewMetricsWriter(metricsFile),
		Logger:  logger.With().Str("component", "trainer").Logger(),
	}
	if cfg.EvalInterval > 0 {
		evaluator := &onpolicy.Evaluator{
			Policy:  policy,
			Creator: creator,
			MakeEnvs: func(stats *onpolicy.RunningMeanStd) (onpolicy.VecEnv, error) {
				return experiments.MakeEvalVecEnv(creator, cfg, stats)
			},
		}
		if provider, ok := envs.(onpolicy.NormalizationProvider); ok {
			evaluator.Normalization = provider
		}
		trainer.Evaluator = evaluator
	}
	if flags.Live {
		live := newLiveReporter(cfg.NumUpdates())
		defer live.Stop()
		trainer.Reporter = live
	} else {
		trainer.Reporter = &onpolicy.LogReporter{Logger: logger}
	}

	logger.Info().Str("algo", cfg.Algorithm).Str("dir", runDir).
		Msg("training; press Ctrl+C to stop")
	return trainer.Run(rip.NewRIP().Chan())
}

func loadOrCreatePolicy(c anyvec.Creator, cfg *onpolicy.Config, flags *Flags,
	envs onpolicy.VecEnv, logger zerolog.Logger) (*experiments.MLPPolicy, error) {
	if flags.LoadFile != "" {
		policy, stats, err := experiments.LoadCheckpoint(flags.LoadFile)
		if err != nil {
			return nil, err
		}
		if normEnv, ok := envs.(*experiments.NormalizedEnv); ok && stats != nil {
			normEnv.SetObsStats(stats)
		}
		logger.Info().Str("path", flags.LoadFile).Msg("loaded policy")
		return policy, nil
	}
	info, err := experiments.LookupEnvInfo(cfg.EnvName)
	if err != nil {
		return nil, err
	}
	obsSize, err := experiments.ObsSize(cfg)
	if err != nil {
		return nil, err
	}
	return experiments.NewMLPPolicy(c, obsSize, info.NumActions, cfg.HiddenSize,
		cfg.RecurrentPolicy), nil
}

// recordConfig writes the resolved configuration into the
// run directory.
func recordConfig(dir string, cfg *onpolicy.Config) (err error) {
	defer essentials.AddCtxTo("record config", &err)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}

func createMetricsFile(cfg *onpolicy.Config, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, essentials.AddCtx("create log dir", err)
	}
	name := cfg.EnvName + "-" + start.Format("06-01-02-15-04-05") + ".csv"
	return os.Create(filepath.Join(cfg.LogDir, name))
}
