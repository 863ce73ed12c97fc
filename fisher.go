package onpolicy

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// FisherPreconditioner is an anysgd.Transformer which
// approximates a natural gradient step, as in ACKTR.
//
// It tracks a running diagonal approximation of the
// Fisher information and divides gradients by it.
// The resulting step is then scaled down so that the
// approximate KL divergence of the update stays below
// KLClip.
//
// For ACKTR, see: https://arxiv.org/abs/1708.05144.
type FisherPreconditioner struct {
	// DecayRate is the decay for the running Fisher
	// estimate.
	//
	// If 0, 0.99 is used.
	DecayRate float64

	// Damping is added to the Fisher estimate before it
	// is inverted.
	//
	// If 0, 1e-2 is used.
	Damping float64

	// KLClip bounds the approximate KL divergence of a
	// step.
	//
	// If 0, 1e-3 is used.
	KLClip float64

	// StepSize must match the optimizer's step size for
	// the KL bound to hold.
	StepSize float64

	fisher map[*anydiff.Var]anyvec.Vector
}

// Transform preconditions the gradient in place.
func (f *FisherPreconditioner) Transform(g anydiff.Grad) anydiff.Grad {
	if f.fisher == nil {
		f.fisher = map[*anydiff.Var]anyvec.Vector{}
	}
	decay := f.decayRate()

	var vFv float64
	for v, grad := range g {
		c := grad.Creator()
		sq := grad.Copy()
		sq.Mul(grad)
		if stat, ok := f.fisher[v]; ok {
			stat.Scale(c.MakeNumeric(decay))
			sq.Scale(c.MakeNumeric(1 - decay))
			stat.Add(sq)
		} else {
			f.fisher[v] = sq
		}

		denom := f.fisher[v].Copy()
		denom.AddScalar(c.MakeNumeric(f.damping()))
		natural := grad.Copy()
		natural.Div(denom)
		vFv += numToFloat(natural.Dot(grad))
		grad.Set(natural)
	}

	vFv *= f.StepSize * f.StepSize
	if vFv > f.klClip() {
		scale := math.Sqrt(f.klClip() / vFv)
		for _, grad := range g {
			grad.Scale(grad.Creator().MakeNumeric(scale))
		}
	}
	return g
}

func (f *FisherPreconditioner) decayRate() float64 {
	if f.DecayRate == 0 {
		return 0.99
	}
	return f.DecayRate
}

func (f *FisherPreconditioner) damping() float64 {
	if f.Damping == 0 {
		return 1e-2
	}
	return f.Damping
}

func (f *FisherPreconditioner) klClip() float64 {
	if f.KLClip == 0 {
		return 1e-3
	}
	return f.KLClip
}
