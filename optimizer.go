package onpolicy

import (
	"errors"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// ErrNonFinite is returned when a loss or gradient is NaN
// or infinite.
var ErrNonFinite = errors.New("non-finite loss or gradient")

// An Optimizer takes gradient steps to minimize a loss.
type Optimizer struct {
	// Params are the variables to update.
	Params []*anydiff.Var

	// Transformer, if non-nil, transforms the gradient
	// before each step (e.g. anysgd.Adam).
	Transformer anysgd.Transformer

	// StepSize is the learning rate.
	StepSize float64

	// MaxGradNorm is the maximum gradient norm.
	// Larger gradients are scaled down before they are
	// transformed.
	//
	// If 0, gradients are not clipped.
	MaxGradNorm float64
}

// Step takes a single step to minimize the loss.
// The loss should have exactly one component.
//
// It returns the gradient norm before clipping.
func (o *Optimizer) Step(loss anydiff.Res) (gradNorm float64, err error) {
	lossVal := sumFloat(loss.Output())
	if math.IsNaN(lossVal) || math.IsInf(lossVal, 0) {
		return 0, ErrNonFinite
	}

	c := loss.Output().Creator()
	grad := anydiff.NewGrad(o.Params...)
	loss.Propagate(anyvec.Ones(c, 1), grad)

	gradNorm = gradientNorm(grad)
	if math.IsNaN(gradNorm) || math.IsInf(gradNorm, 0) {
		return gradNorm, ErrNonFinite
	}
	if o.MaxGradNorm > 0 && gradNorm > o.MaxGradNorm {
		grad.Scale(c.MakeNumeric(o.MaxGradNorm / (gradNorm + 1e-6)))
	}

	if o.Transformer != nil {
		grad = o.Transformer.Transform(grad)
	}
	grad.Scale(c.MakeNumeric(-o.StepSize))
	grad.AddToVars()
	return gradNorm, nil
}

func gradientNorm(grad anydiff.Grad) float64 {
	var sum float64
	for _, g := range grad {
		sum += numToFloat(g.Dot(g))
	}
	return math.Sqrt(sum)
}
