package experiments

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/approb"
	"github.com/unixpickle/onpolicy"
)

func TestMLPPolicyRatioIdentity(t *testing.T) {
	for _, recurrent := range []bool{false, true} {
		c := anyvec64.DefaultCreator{}
		gen := rand.New(rand.NewSource(1337))
		policy := NewMLPPolicy(c, 3, 4, 8, recurrent)
		policy.Actor.Weights.Vector.Scale(c.MakeNumeric(100))
		r := runPolicy(c, policy, gen, 3, 5, 4)

		batch := r.FullBatch(r.Advantages(), recurrent)
		checkRatios(t, recurrent, policy, batch)

		if recurrent {
			batches, err := r.RecurrentMinibatches(r.Advantages(), 2, gen)
			if err != nil {
				t.Fatal(err)
			}
			for batch := range batches {
				checkRatios(t, recurrent, policy, batch)
			}
		}
	}
}

func TestMLPPolicyHiddenState(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := NewMLPPolicy(c, 2, 2, 5, true)
	if policy.HiddenSize() != 5 || policy.ActionSize() != 2 {
		t.Fatalf("unexpected sizes %d, %d", policy.HiddenSize(), policy.ActionSize())
	}
	obs := floatsToVec(c, []float64{0.5, -0.3, 0.5, -0.3})
	hidden := floatsToVec(c, []float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5})

	// A zero mask must make the hidden state irrelevant.
	masked := policy.Act(obs, hidden, floatsToVec(c, []float64{0, 0}), true)
	fresh := policy.Act(obs, c.MakeVector(10), floatsToVec(c, []float64{1, 1}), true)
	if !floatsClose(vecToFloats(masked.Hidden), vecToFloats(fresh.Hidden)) {
		t.Errorf("masked hidden %v differs from fresh hidden %v",
			vecToFloats(masked.Hidden), vecToFloats(fresh.Hidden))
	}

	kept := policy.Act(obs, hidden, floatsToVec(c, []float64{1, 1}), true)
	if floatsClose(vecToFloats(kept.Hidden), vecToFloats(fresh.Hidden)) {
		t.Error("unmasked hidden state was ignored")
	}

	ff := NewMLPPolicy(c, 2, 2, 5, false)
	if ff.Recurrent() || ff.HiddenSize() != 1 {
		t.Error("unexpected feed-forward hidden state")
	}
}

func TestMLPPolicySampling(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := NewMLPPolicy(c, 2, 3, 8, false)
	policy.Actor.Weights.Vector.Scale(c.MakeNumeric(100))
	obs := floatsToVec(c, []float64{0.7, -1.2})
	hidden := c.MakeVector(1)
	masks := floatsToVec(c, []float64{1})

	features := policy.Base.Apply(anydiff.NewConst(obs), 1)
	logits := vecToFloats(policy.Actor.Apply(features, 1).Output())
	probs := softmax(logits)

	corr := approb.Correlation(20000, 0.3, func() float64 {
		off := rand.Float64()
		for i, p := range probs {
			off -= p
			if off <= 0 {
				return float64(i)
			}
		}
		return float64(len(probs) - 1)
	}, func() float64 {
		out := policy.Act(obs, hidden, masks, false)
		return float64(anyvec.MaxIndex(out.Actions))
	})
	if corr < 0.999 {
		t.Error("correlation should be near 1, but got", corr)
	}

	out := policy.Act(obs, hidden, masks, true)
	best := 0
	for i, x := range logits {
		if x > logits[best] {
			best = i
		}
	}
	if anyvec.MaxIndex(out.Actions) != best {
		t.Errorf("expected greedy action %d but got %d", best,
			anyvec.MaxIndex(out.Actions))
	}
	expectedLogProb := math.Log(probs[best])
	if actual := vecToFloats(out.LogProbs)[0]; math.Abs(actual-expectedLogProb) > 1e-6 {
		t.Errorf("expected log prob %f but got %f", expectedLogProb, actual)
	}
}

func TestMLPPolicyCheckpoint(t *testing.T) {
	for _, recurrent := range []bool{false, true} {
		c := anyvec64.DefaultCreator{}
		policy := NewMLPPolicy(c, 3, 2, 6, recurrent)
		stats := onpolicy.NewRunningMeanStd(3)
		stats.Update([][]float64{{1, 2, 3}, {2, 4, 8}})

		cp := &onpolicy.Checkpointer{
			Dir:     filepath.Join(t.TempDir(), "run"),
			EnvName: CartPoleName,
		}
		if err := cp.Save(policy, stats); err != nil {
			t.Fatal(err)
		}
		loaded, loadedStats, err := LoadCheckpoint(cp.Path())
		if err != nil {
			t.Fatal(err)
		}
		if loaded.Recurrent() != recurrent {
			t.Errorf("recurrent %v: loaded policy has recurrent=%v", recurrent,
				loaded.Recurrent())
		}
		if loadedStats == nil || !floatsClose(loadedStats.Mean, stats.Mean) {
			t.Errorf("recurrent %v: bad stats %v", recurrent, loadedStats)
		}

		obs := floatsToVec(c, []float64{0.1, 0.2, -0.3, 1, 0, -1})
		hidden := c.MakeVector(2 * policy.HiddenSize())
		masks := floatsToVec(c, []float64{1, 1})
		expected := vecToFloats(policy.Value(obs, hidden, masks))
		actual := vecToFloats(loaded.Value(obs, hidden, masks))
		if !floatsClose(actual, expected) {
			t.Errorf("recurrent %v: expected values %v but got %v", recurrent,
				expected, actual)
		}
	}
}

// runPolicy fills a buffer by running the policy on
// random observations, with random episode boundaries.
func runPolicy(c anyvec.Creator, p *MLPPolicy, gen *rand.Rand, obsSize, numSteps,
	numLanes int) *onpolicy.RolloutBuffer {
	r := onpolicy.NewRolloutBuffer(c, numSteps, numLanes, obsSize, p.ActionSize(),
		p.HiddenSize())
	if err := r.SetInitialObs(randomObs(c, gen, numLanes*obsSize)); err != nil {
		panic(err)
	}
	for step := 0; step < numSteps; step++ {
		out := p.Act(r.ObsVector(step), r.HiddenVector(step), r.MasksVector(step), false)
		rewards := make([]float64, numLanes)
		masks := make([]float64, numLanes)
		for i := range rewards {
			rewards[i] = gen.NormFloat64()
			if gen.Intn(3) != 0 {
				masks[i] = 1
			}
		}
		err := r.Insert(step, randomObs(c, gen, numLanes*obsSize), out.Hidden,
			out.Actions, out.LogProbs, out.Values, rewards, masks)
		if err != nil {
			panic(err)
		}
	}
	bootstrap := p.Value(r.ObsVector(numSteps), r.HiddenVector(numSteps),
		r.MasksVector(numSteps))
	if err := r.ComputeReturns(bootstrap, true, 0.99, 0.95); err != nil {
		panic(err)
	}
	return r
}

func randomObs(c anyvec.Creator, gen *rand.Rand, size int) anyvec.Vector {
	data := make([]float64, size)
	for i := range data {
		data[i] = gen.NormFloat64()
	}
	return floatsToVec(c, data)
}

func checkRatios(t *testing.T, recurrent bool, p *MLPPolicy, batch *onpolicy.Minibatch) {
	eval := p.EvaluateActions(batch)
	newProbs := vecToFloats(eval.LogProbs.Output())
	oldProbs := vecToFloats(batch.OldLogProbs)
	for i, x := range newProbs {
		if ratio := math.Exp(x - oldProbs[i]); math.Abs(ratio-1) > 1e-6 {
			t.Errorf("recurrent %v, sample %d: expected ratio 1 but got %f",
				recurrent, i, ratio)
		}
	}
	if !floatsClose(vecToFloats(eval.Values.Output()), vecToFloats(batch.OldValues)) {
		t.Errorf("recurrent %v: values do not match stored values", recurrent)
	}
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, x := range logits {
		max = math.Max(max, x)
	}
	var sum float64
	res := make([]float64, len(logits))
	for i, x := range logits {
		res[i] = math.Exp(x - max)
		sum += res[i]
	}
	for i := range res {
		res[i] /= sum
	}
	return res
}

func floatsClose(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, x := range a {
		if math.Abs(x-b[i]) > 1e-6 {
			return false
		}
	}
	return true
}
