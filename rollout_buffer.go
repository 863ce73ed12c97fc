package onpolicy

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec"
)

// ErrStepOutOfRange is returned when inserting at a
// timestep outside of a RolloutBuffer's horizon.
var ErrStepOutOfRange = errors.New("step index out of range")

// A RolloutBuffer stores a fixed number of timesteps from
// a batch of environments running in lockstep.
//
// Slot 0 always holds the observation, hidden state, and
// mask carried over from the last slot of the previous
// cycle.
// The buffer is allocated once and reused for every
// cycle.
type RolloutBuffer struct {
	Creator anyvec.Creator

	NumSteps   int
	NumLanes   int
	ObsSize    int
	ActionSize int
	HiddenSize int

	// Rows with NumSteps+1 slots.
	obs     [][]float64
	hidden  [][]float64
	masks   [][]float64
	values  [][]float64
	returns [][]float64

	// Rows with NumSteps slots.
	actions    [][]float64
	logProbs   [][]float64
	rewards    [][]float64
	advantages [][]float64
}

// NewRolloutBuffer allocates a RolloutBuffer.
//
// Masks start at 1 and every other entry starts at 0.
func NewRolloutBuffer(c anyvec.Creator, numSteps, numLanes, obsSize, actionSize,
	hiddenSize int) *RolloutBuffer {
	r := &RolloutBuffer{
		Creator:    c,
		NumSteps:   numSteps,
		NumLanes:   numLanes,
		ObsSize:    obsSize,
		ActionSize: actionSize,
		HiddenSize: hiddenSize,

		obs:     makeRows(numSteps+1, numLanes*obsSize),
		hidden:  makeRows(numSteps+1, numLanes*hiddenSize),
		masks:   makeRows(numSteps+1, numLanes),
		values:  makeRows(numSteps+1, numLanes),
		returns: makeRows(numSteps+1, numLanes),

		actions:    makeRows(numSteps, numLanes*actionSize),
		logProbs:   makeRows(numSteps, numLanes),
		rewards:    makeRows(numSteps, numLanes),
		advantages: makeRows(numSteps, numLanes),
	}
	for _, row := range r.masks {
		for i := range row {
			row[i] = 1
		}
	}
	return r
}

// SetInitialObs sets the observation in slot 0.
// It is used once, after the environments are reset.
func (r *RolloutBuffer) SetInitialObs(obs anyvec.Vector) error {
	return copyInto("observation", r.obs[0], vecToFloats(obs))
}

// Insert stores the results of a timestep.
//
// The observation, hidden state, and mask describe the
// state after the step and go into slot step+1.
// The action, log probability, value, and reward go into
// slot step.
func (r *RolloutBuffer) Insert(step int, obs, hidden, action, logProb, value anyvec.Vector,
	reward, mask []float64) error {
	if step < 0 || step >= r.NumSteps {
		return fmt.Errorf("insert step %d (horizon %d): %w", step, r.NumSteps,
			ErrStepOutOfRange)
	}
	fields := []struct {
		name string
		dst  []float64
		src  []float64
	}{
		{"observation", r.obs[step+1], vecToFloats(obs)},
		{"hidden state", r.hidden[step+1], vecToFloats(hidden)},
		{"mask", r.masks[step+1], mask},
		{"action", r.actions[step], vecToFloats(action)},
		{"log probability", r.logProbs[step], vecToFloats(logProb)},
		{"value", r.values[step], vecToFloats(value)},
		{"reward", r.rewards[step], reward},
	}
	for _, f := range fields {
		if err := copyInto(f.name, f.dst, f.src); err != nil {
			return err
		}
	}
	return nil
}

// ComputeReturns fills in the returns and advantages for
// every stored timestep.
//
// The bootstrap value estimates the state in the last
// slot and terminates the recursion.
func (r *RolloutBuffer) ComputeReturns(bootstrap anyvec.Vector, useGAE bool,
	gamma, lambda float64) error {
	if err := copyInto("bootstrap value", r.values[r.NumSteps],
		vecToFloats(bootstrap)); err != nil {
		return err
	}
	e := &Estimator{Discount: gamma, Lambda: lambda, UseGAE: useGAE}
	e.Estimate(r.rewards, r.values, r.masks, r.returns, r.advantages)
	return nil
}

// AfterUpdate carries the last slot over into slot 0 so
// that the next cycle continues where this one ended.
//
// It must be called exactly once per cycle, after the
// policy update.
func (r *RolloutBuffer) AfterUpdate() {
	last := r.NumSteps
	copy(r.obs[0], r.obs[last])
	copy(r.hidden[0], r.hidden[last])
	copy(r.masks[0], r.masks[last])
}

// ObsVector returns the observations in a slot.
func (r *RolloutBuffer) ObsVector(slot int) anyvec.Vector {
	return floatsToVec(r.Creator, r.obs[slot])
}

// HiddenVector returns the hidden states in a slot.
func (r *RolloutBuffer) HiddenVector(slot int) anyvec.Vector {
	return floatsToVec(r.Creator, r.hidden[slot])
}

// MasksVector returns the masks in a slot.
func (r *RolloutBuffer) MasksVector(slot int) anyvec.Vector {
	return floatsToVec(r.Creator, r.masks[slot])
}

// Obs returns the observation row for a slot.
// The row is owned by the buffer.
func (r *RolloutBuffer) Obs(slot int) []float64 {
	return r.obs[slot]
}

// Hidden returns the hidden state row for a slot.
func (r *RolloutBuffer) Hidden(slot int) []float64 {
	return r.hidden[slot]
}

// Masks returns the mask row for a slot.
func (r *RolloutBuffer) Masks(slot int) []float64 {
	return r.masks[slot]
}

// Values returns the value row for a slot.
// Slot NumSteps holds the bootstrap value.
func (r *RolloutBuffer) Values(slot int) []float64 {
	return r.values[slot]
}

// Rewards returns the reward row for a slot.
func (r *RolloutBuffer) Rewards(slot int) []float64 {
	return r.rewards[slot]
}

// Returns returns the rows of computed returns, one per
// slot including the bootstrap slot.
func (r *RolloutBuffer) Returns() [][]float64 {
	return r.returns
}

// Advantages returns the rows of computed advantages.
func (r *RolloutBuffer) Advantages() [][]float64 {
	return r.advantages
}

func copyInto(name string, dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%s: expected %d components but got %d", name, len(dst),
			len(src))
	}
	copy(dst, src)
	return nil
}
