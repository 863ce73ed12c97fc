package onpolicy

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Policy is an actor-critic model which can be trained
// with on-policy algorithms.
//
// Observations, hidden states, masks, and actions are
// packed batches: a batch of n observations is a single
// vector of n*obsSize components.
type Policy interface {
	// Act samples actions for a batch of observations.
	//
	// The hidden state is multiplied by the masks before
	// it is used, so that a mask of 0 starts a new
	// episode.
	// If deterministic is true, the most likely action is
	// chosen instead of a random sample.
	Act(obs, hidden, masks anyvec.Vector, deterministic bool) *PolicyOutput

	// Value estimates the value of a batch of states.
	Value(obs, hidden, masks anyvec.Vector) anyvec.Vector

	// EvaluateActions recomputes values, log
	// probabilities, and entropies for the actions in a
	// minibatch under the current parameters.
	EvaluateActions(m *Minibatch) *Evaluation

	// Parameters returns the trainable parameters.
	Parameters() []*anydiff.Var

	// Recurrent returns true if the policy carries a
	// hidden state between timesteps.
	Recurrent() bool

	// ActionSize is the number of components in the
	// action vector for one environment.
	ActionSize() int

	// HiddenSize is the size of the hidden state for one
	// environment.
	HiddenSize() int
}

// PolicyOutput is the result of running a Policy on a
// batch of observations.
type PolicyOutput struct {
	Values   anyvec.Vector
	Actions  anyvec.Vector
	LogProbs anyvec.Vector
	Hidden   anyvec.Vector
}

// Evaluation stores differentiable outputs of a Policy
// for a Minibatch.
type Evaluation struct {
	// Values has one component per sample.
	Values anydiff.Res

	// LogProbs has one component per sample.
	LogProbs anydiff.Res

	// Entropy has one component per sample.
	Entropy anydiff.Res
}

// A Minibatch is a batch of stored transitions.
//
// Samples are laid out time-major: sample t*NumLanes+i is
// timestep t of lane i.
// For feed-forward sampling, NumSteps is 1 and every
// sample is its own lane.
type Minibatch struct {
	Size     int
	NumSteps int
	NumLanes int

	Obs     anyvec.Vector
	Masks   anyvec.Vector
	Actions anyvec.Vector

	// Hidden contains one initial hidden state per lane.
	Hidden anyvec.Vector

	OldValues   anyvec.Vector
	OldLogProbs anyvec.Vector
	Returns     anyvec.Vector
	Advantages  anyvec.Vector
}
