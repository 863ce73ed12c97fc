package onpolicy

// An Estimator computes discounted returns and advantages
// from a batch of rewards and value predictions.
//
// Masks cut off the recursion at episode boundaries: a
// mask of 0 at timestep t+1 means that nothing after
// timestep t contributes to the return at timestep t.
type Estimator struct {
	// Discount is the reward discount factor.
	Discount float64

	// Lambda is the GAE parameter.
	// A lambda of 0 is high-bias and low-variance.
	// A lambda of 1 is low-bias and high-variance.
	//
	// For more on GAE, see:
	// https://arxiv.org/abs/1506.02438.
	Lambda float64

	// UseGAE selects generalized advantage estimation.
	// If false, plain discounted returns are used and
	// Lambda is ignored.
	UseGAE bool
}

// Estimate fills returns and advantages in place.
//
// The rewards and advantages have T rows.
// The values, masks, and returns have T+1 rows, where
// values[T] is the bootstrap value and returns[T] is set
// to it.
// Every row has one entry per lane.
//
// In both modes, advantages[t] = returns[t] - values[t].
func (e *Estimator) Estimate(rewards, values, masks, returns, advantages [][]float64) {
	numSteps := len(rewards)
	copy(returns[numSteps], values[numSteps])
	if e.UseGAE {
		for lane := range returns[numSteps] {
			var gae float64
			for t := numSteps - 1; t >= 0; t-- {
				mask := masks[t+1][lane]
				delta := rewards[t][lane] + e.Discount*mask*values[t+1][lane] -
					values[t][lane]
				gae = delta + e.Discount*e.Lambda*mask*gae
				advantages[t][lane] = gae
				returns[t][lane] = gae + values[t][lane]
			}
		}
		return
	}
	for t := numSteps - 1; t >= 0; t-- {
		for lane, next := range returns[t+1] {
			returns[t][lane] = rewards[t][lane] + e.Discount*masks[t+1][lane]*next
			advantages[t][lane] = returns[t][lane] - values[t][lane]
		}
	}
}

// Advantages computes returns and advantages for T
// timesteps of rewards, values, and masks.
//
// Each input has T rows of one entry per lane.
// Unlike Estimate, masks[t] is the mask produced by step
// t, i.e. 0 if the episode ended at step t.
// The bootstrap value estimates the state after the last
// step.
// The resulting returns and advantages have T rows.
func Advantages(rewards, values, masks [][]float64, bootstrap []float64,
	gamma, lambda float64, useGAE bool) (returns, advantages [][]float64) {
	numSteps := len(rewards)
	numLanes := len(bootstrap)
	first := make([]float64, numLanes)
	for i := range first {
		first[i] = 1
	}
	allValues := append(append([][]float64{}, values...), bootstrap)
	allMasks := append([][]float64{first}, masks...)
	returns = makeRows(numSteps+1, numLanes)
	advantages = makeRows(numSteps, numLanes)
	e := &Estimator{Discount: gamma, Lambda: lambda, UseGAE: useGAE}
	e.Estimate(rewards, allValues, allMasks, returns, advantages)
	return returns[:numSteps], advantages
}
