package onpolicy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// CheckpointDir derives the directory for a run's
// checkpoints from its hyperparameters and start time.
func CheckpointDir(root string, c *Config, start time.Time) string {
	parts := []string{
		root,
		c.Algorithm,
		fmt.Sprintf("%d frames", c.NumFrames),
		fmt.Sprintf("%d CPU processes", c.NumProcesses),
	}
	switch c.Algorithm {
	case "ppo":
		parts = append(parts,
			fmt.Sprintf("%d epochs", c.PPOEpoch),
			fmt.Sprintf("%d batches", c.NumMiniBatch),
			fmt.Sprintf("clip parameter of %v", c.ClipParam))
	case "a2c":
		parts = append(parts, fmt.Sprintf("%d forward steps in A2C", c.NumSteps))
	}
	parts = append(parts,
		fmt.Sprintf("%v learning rate", c.LR),
		c.EnvName,
		start.Format("06-01-02-15-04-05"))
	return filepath.Join(parts...)
}

// A Checkpointer saves policies and their normalization
// statistics.
type Checkpointer struct {
	Dir     string
	EnvName string
}

// Path returns the file to which checkpoints are saved.
func (c *Checkpointer) Path() string {
	return filepath.Join(c.Dir, c.EnvName+".policy")
}

// Save writes the policy and optional statistics.
//
// The policy must implement serializer.Serializer.
// The directory is created if it does not exist.
func (c *Checkpointer) Save(p Policy, stats *RunningMeanStd) (err error) {
	defer essentials.AddCtxTo("save checkpoint", &err)
	s, ok := p.(serializer.Serializer)
	if !ok {
		return errors.New("policy is not serializable")
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return err
	}
	statsData, err := encodeStats(stats)
	if err != nil {
		return err
	}
	return serializer.SaveAny(c.Path(), s, serializer.Bytes(statsData))
}

// LoadStats decodes statistics saved by a Checkpointer.
// It returns nil for empty data.
func LoadStats(data serializer.Bytes) (*RunningMeanStd, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var res RunningMeanStd
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("load stats", err)
	}
	return &res, nil
}

func encodeStats(stats *RunningMeanStd) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	return json.Marshal(stats)
}
