package onpolicy

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrl/anypg"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/stat"
)

// PPO implements Proximal Policy Optimization with a
// clipped surrogate objective.
//
// See the PPO paper: https://arxiv.org/abs/1707.06347.
type PPO struct {
	Policy    Policy
	Optimizer *Optimizer

	// Epsilon is the amount by which the probability ratio
	// should change.
	//
	// If 0, anypg.DefaultPPOEpsilon is used.
	Epsilon float64

	// Epochs is the number of passes over the buffer.
	Epochs int

	// NumMiniBatch is the number of minibatches per pass.
	NumMiniBatch int

	ValueCoef   float64
	EntropyCoef float64

	// ClipValueLoss, if true, clips value predictions
	// around the stored predictions in the same way as
	// the probability ratio.
	ClipValueLoss bool

	// NormalizeAdvantages, if true, standardizes the
	// advantages before each update.
	NormalizeAdvantages bool

	// Rand is used to shuffle minibatches.
	// If nil, a generator seeded from the global source is
	// used.
	Rand *rand.Rand
}

// Update runs every epoch of PPO on the buffer.
//
// The resulting stats are averaged over every step.
func (p *PPO) Update(r *RolloutBuffer) (stats *UpdateStats, err error) {
	defer essentials.AddCtxTo("ppo update", &err)

	advantages := r.Advantages()
	if p.NormalizeAdvantages {
		advantages = normalizeAdvantages(advantages)
	}

	stats = &UpdateStats{}
	var numSteps int
	for epoch := 0; epoch < p.Epochs; epoch++ {
		var batches <-chan *Minibatch
		if p.Policy.Recurrent() {
			batches, err = r.RecurrentMinibatches(advantages, p.NumMiniBatch, p.rand())
		} else {
			batches, err = r.FeedForwardMinibatches(advantages, p.NumMiniBatch, p.rand())
		}
		if err != nil {
			return nil, err
		}
		for batch := range batches {
			l := p.losses(batch)
			if _, err := p.Optimizer.Step(l.Total(p.ValueCoef, p.EntropyCoef)); err != nil {
				for range batches {
				}
				return nil, err
			}
			stats.add(l.Stats())
			numSteps++
		}
	}
	if numSteps > 0 {
		stats.scale(1 / float64(numSteps))
	}
	return stats, nil
}

func (p *PPO) losses(batch *Minibatch) *losses {
	c := batch.Obs.Creator()
	eval := p.Policy.EvaluateActions(batch)

	ratios := anydiff.Exp(anydiff.Sub(eval.LogProbs, anydiff.NewConst(batch.OldLogProbs)))
	advs := anydiff.NewConst(batch.Advantages)
	surrogate := anypg.PPOObjective(c.MakeNumeric(p.epsilon()), ratios, advs)

	return &losses{
		Value:   p.valueLoss(c, eval.Values, batch),
		Action:  anydiff.Scale(mean(surrogate), c.MakeNumeric(-1)),
		Entropy: mean(eval.Entropy),
	}
}

func (p *PPO) valueLoss(c anyvec.Creator, values anydiff.Res, batch *Minibatch) anydiff.Res {
	returns := anydiff.NewConst(batch.Returns)
	unclipped := squaredError(values, returns)
	if !p.ClipValueLoss {
		return mean(unclipped)
	}

	oldValues := vecToFloats(batch.OldValues)
	newValues := vecToFloats(values.Output())
	eps := p.epsilon()

	// The clipped prediction is the new prediction while
	// it stays within eps of the old one, and a constant
	// at the edge of that range otherwise.
	offsets := make([]float64, len(oldValues))
	inside := selectMask(c, len(oldValues), func(i int) bool {
		diff := newValues[i] - oldValues[i]
		offsets[i] = oldValues[i] + math.Max(-eps, math.Min(eps, diff))
		if math.Abs(diff) <= eps {
			offsets[i] = 0
			return true
		}
		return false
	})
	clippedValues := anydiff.Add(
		anydiff.Mul(values, inside),
		anydiff.NewConst(floatsToVec(c, offsets)),
	)
	clipped := squaredError(clippedValues, returns)

	unclippedOut := vecToFloats(unclipped.Output())
	clippedOut := vecToFloats(clipped.Output())
	useUnclipped := selectMask(c, len(oldValues), func(i int) bool {
		return unclippedOut[i] >= clippedOut[i]
	})
	useClipped := selectMask(c, len(oldValues), func(i int) bool {
		return unclippedOut[i] < clippedOut[i]
	})
	return mean(anydiff.Add(
		anydiff.Mul(unclipped, useUnclipped),
		anydiff.Mul(clipped, useClipped),
	))
}

func (p *PPO) epsilon() float64 {
	if p.Epsilon == 0 {
		return anypg.DefaultPPOEpsilon
	}
	return p.Epsilon
}

func (p *PPO) rand() *rand.Rand {
	if p.Rand == nil {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return p.Rand
}

// normalizeAdvantages standardizes advantages to zero
// mean and unit variance.
func normalizeAdvantages(advantages [][]float64) [][]float64 {
	flat := flatten(advantages)
	mu, std := stat.MeanStdDev(flat, nil)
	if math.IsNaN(std) {
		std = 0
	}
	res := make([][]float64, len(advantages))
	for t, row := range advantages {
		res[t] = make([]float64, len(row))
		for i, x := range row {
			res[t][i] = (x - mu) / (std + 1e-5)
		}
	}
	return res
}
