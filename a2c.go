package onpolicy

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
)

// A2C implements synchronous advantage actor-critic.
//
// With a FisherPreconditioner in the Optimizer, it
// implements ACKTR.
type A2C struct {
	Policy    Policy
	Optimizer *Optimizer

	// ValueCoef scales the value loss.
	ValueCoef float64

	// EntropyCoef scales the entropy bonus.
	EntropyCoef float64
}

// Update takes a single step on the whole buffer.
func (a *A2C) Update(r *RolloutBuffer) (stats *UpdateStats, err error) {
	defer essentials.AddCtxTo("a2c update", &err)

	batch := r.FullBatch(r.Advantages(), a.Policy.Recurrent())
	eval := a.Policy.EvaluateActions(batch)

	advantages := anydiff.Sub(anydiff.NewConst(batch.Returns), eval.Values)
	detached := anydiff.NewConst(advantages.Output().Copy())
	c := r.Creator
	l := &losses{
		Value: mean(anydiff.Mul(advantages, advantages)),
		Action: anydiff.Scale(mean(anydiff.Mul(detached, eval.LogProbs)),
			c.MakeNumeric(-1)),
		Entropy: mean(eval.Entropy),
	}
	if _, err := a.Optimizer.Step(l.Total(a.ValueCoef, a.EntropyCoef)); err != nil {
		return nil, err
	}
	return l.Stats(), nil
}
