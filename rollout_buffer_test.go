package onpolicy

import (
	"errors"
	"math"
	"testing"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestRolloutBufferInsertRange(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := NewRolloutBuffer(c, 3, 2, 1, 1, 1)
	vec := floatsToVec(c, []float64{0, 0})
	for _, step := range []int{-1, 3, 10} {
		err := r.Insert(step, vec, vec, vec, vec, vec, []float64{0, 0}, []float64{1, 1})
		if !errors.Is(err, ErrStepOutOfRange) {
			t.Errorf("step %d: expected ErrStepOutOfRange but got %v", step, err)
		}
	}
}

func TestRolloutBufferInsertSize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := NewRolloutBuffer(c, 3, 2, 2, 1, 1)
	small := floatsToVec(c, []float64{0, 0})
	err := r.Insert(0, small, small, small, small, small, []float64{0, 0},
		[]float64{1, 1})
	if err == nil {
		t.Error("expected error for short observation")
	}
}

func TestRolloutBufferInitialMasks(t *testing.T) {
	r := NewRolloutBuffer(anyvec64.DefaultCreator{}, 4, 3, 1, 1, 1)
	for slot := 0; slot <= 4; slot++ {
		for lane, m := range r.Masks(slot) {
			if m != 1 {
				t.Errorf("slot %d lane %d: expected mask 1 but got %f", slot, lane, m)
			}
		}
	}
}

func TestRolloutBufferContinuity(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := fillTestBuffer(c, 5, 3)

	lastObs := append([]float64{}, r.Obs(5)...)
	lastHidden := append([]float64{}, r.Hidden(5)...)
	lastMasks := append([]float64{}, r.Masks(5)...)
	r.AfterUpdate()

	if !floatsEqual(r.Obs(0), lastObs) {
		t.Errorf("expected observations %v but got %v", lastObs, r.Obs(0))
	}
	if !floatsEqual(r.Hidden(0), lastHidden) {
		t.Errorf("expected hidden states %v but got %v", lastHidden, r.Hidden(0))
	}
	if !floatsEqual(r.Masks(0), lastMasks) {
		t.Errorf("expected masks %v but got %v", lastMasks, r.Masks(0))
	}
}

func TestRolloutBufferComputeReturns(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := fillTestBuffer(c, 4, 2)
	bootstrap := []float64{0.3, -0.7}
	if err := r.ComputeReturns(floatsToVec(c, bootstrap), true, 0.9, 0.8); err != nil {
		t.Fatal(err)
	}

	var rewards, values, masks [][]float64
	for step := 0; step < 4; step++ {
		rewards = append(rewards, r.Rewards(step))
		values = append(values, r.Values(step))
		masks = append(masks, r.Masks(step+1))
	}
	expRets, expAdvs := Advantages(rewards, values, masks, bootstrap, 0.9, 0.8, true)
	for step := 0; step < 4; step++ {
		for lane := 0; lane < 2; lane++ {
			actual := r.Returns()[step][lane]
			if math.Abs(actual-expRets[step][lane]) > 1e-8 {
				t.Errorf("return (%d, %d): expected %f but got %f", step, lane,
					expRets[step][lane], actual)
			}
			actual = r.Advantages()[step][lane]
			if math.Abs(actual-expAdvs[step][lane]) > 1e-8 {
				t.Errorf("advantage (%d, %d): expected %f but got %f", step, lane,
					expAdvs[step][lane], actual)
			}
		}
	}
	if !floatsEqual(r.Returns()[4], bootstrap) {
		t.Errorf("expected bootstrap returns %v but got %v", bootstrap, r.Returns()[4])
	}
}

// fillTestBuffer creates a buffer with 2-dimensional
// observations, 2-dimensional actions, and 3-dimensional
// hidden states.
//
// The log probability of every transition is a unique ID
// equal to step*numLanes + lane, and every third lane
// finishes an episode on odd steps.
func fillTestBuffer(c anyvec.Creator, numSteps, numLanes int) *RolloutBuffer {
	r := NewRolloutBuffer(c, numSteps, numLanes, 2, 2, 3)
	initObs := make([]float64, numLanes*2)
	for i := range initObs {
		initObs[i] = float64(i)
	}
	if err := r.SetInitialObs(floatsToVec(c, initObs)); err != nil {
		panic(err)
	}
	for step := 0; step < numSteps; step++ {
		var obs, hidden, actions, logProbs, values, rewards, masks []float64
		for lane := 0; lane < numLanes; lane++ {
			id := float64(step*numLanes + lane)
			obs = append(obs, id, -id)
			hidden = append(hidden, id, id*2, id*3)
			actions = append(actions, 1, 0)
			logProbs = append(logProbs, id)
			values = append(values, math.Sin(id))
			rewards = append(rewards, math.Cos(id))
			if lane%3 == 0 && step%2 == 1 {
				masks = append(masks, 0)
			} else {
				masks = append(masks, 1)
			}
		}
		err := r.Insert(step, floatsToVec(c, obs), floatsToVec(c, hidden),
			floatsToVec(c, actions), floatsToVec(c, logProbs), floatsToVec(c, values),
			rewards, masks)
		if err != nil {
			panic(err)
		}
	}
	return r
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, x := range a {
		if math.Abs(x-b[i]) > 1e-8 {
			return false
		}
	}
	return true
}
