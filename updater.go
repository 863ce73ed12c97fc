package onpolicy

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// An Updater improves a Policy using the contents of a
// filled RolloutBuffer.
type Updater interface {
	Update(r *RolloutBuffer) (*UpdateStats, error)
}

// UpdateStats summarizes the losses of an update.
type UpdateStats struct {
	ValueLoss  float64
	ActionLoss float64
	Entropy    float64
}

// add accumulates another set of stats.
func (u *UpdateStats) add(other *UpdateStats) {
	u.ValueLoss += other.ValueLoss
	u.ActionLoss += other.ActionLoss
	u.Entropy += other.Entropy
}

func (u *UpdateStats) scale(s float64) {
	u.ValueLoss *= s
	u.ActionLoss *= s
	u.Entropy *= s
}

// losses are the terms of an actor-critic objective.
type losses struct {
	Value   anydiff.Res
	Action  anydiff.Res
	Entropy anydiff.Res
}

// Total combines the terms into a single loss to
// minimize.
func (l *losses) Total(valueCoef, entropyCoef float64) anydiff.Res {
	c := l.Value.Output().Creator()
	return anydiff.Add(
		anydiff.Add(anydiff.Scale(l.Value, c.MakeNumeric(valueCoef)), l.Action),
		anydiff.Scale(l.Entropy, c.MakeNumeric(-entropyCoef)),
	)
}

// Stats reads the current values of the terms.
func (l *losses) Stats() *UpdateStats {
	return &UpdateStats{
		ValueLoss:  sumFloat(l.Value.Output()),
		ActionLoss: sumFloat(l.Action.Output()),
		Entropy:    sumFloat(l.Entropy.Output()),
	}
}

// mean averages the components of a result.
func mean(r anydiff.Res) anydiff.Res {
	c := r.Output().Creator()
	n := r.Output().Len()
	return anydiff.Scale(anydiff.Sum(r), c.MakeNumeric(1/float64(n)))
}

func squaredError(a, b anydiff.Res) anydiff.Res {
	diff := anydiff.Sub(a, b)
	return anydiff.Mul(diff, diff)
}

// selectMask produces a constant which is 1 wherever pred
// returns true for the i-th component.
func selectMask(c anyvec.Creator, n int, pred func(i int) bool) anydiff.Res {
	mask := make([]float64, n)
	for i := range mask {
		if pred(i) {
			mask[i] = 1
		}
	}
	return anydiff.NewConst(floatsToVec(c, mask))
}
