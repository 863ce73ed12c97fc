package onpolicy

import (
	"errors"
	"math/rand"
	"sort"
)

// ErrTooManyMinibatches is returned when a recurrent
// buffer cannot be split into the requested number of
// minibatches without splitting up trajectories.
var ErrTooManyMinibatches = errors.New("more minibatches than lanes")

// sampleIndex identifies a transition by slot and lane.
type sampleIndex struct {
	Step int
	Lane int
}

// FeedForwardMinibatches partitions every stored
// transition into numMiniBatch random, non-overlapping
// minibatches.
//
// Minibatch sizes differ by at most one.
// Within a minibatch, samples are ordered by timestep and
// then by lane.
// Each call produces a new random partition.
//
// The advantages are indexed like the buffer's
// advantages, but may be normalized by the caller.
//
// The caller must read the entire channel to prevent a
// resource leak.
func (r *RolloutBuffer) FeedForwardMinibatches(advantages [][]float64, numMiniBatch int,
	gen *rand.Rand) (<-chan *Minibatch, error) {
	total := r.NumSteps * r.NumLanes
	if numMiniBatch < 1 || numMiniBatch > total {
		return nil, errors.New("feed-forward minibatches: invalid minibatch count")
	}
	perm := gen.Perm(total)
	res := make(chan *Minibatch, 1)
	go func() {
		defer close(res)
		for _, part := range partition(perm, numMiniBatch) {
			sort.Ints(part)
			indices := make([]sampleIndex, len(part))
			for i, flat := range part {
				indices[i] = sampleIndex{Step: flat / r.NumLanes, Lane: flat % r.NumLanes}
			}
			res <- r.feedForwardBatch(indices, advantages)
		}
	}()
	return res, nil
}

// RecurrentMinibatches partitions the lanes into
// numMiniBatch random groups and produces one minibatch
// per group.
//
// Each minibatch contains entire trajectories, so that a
// recurrent policy can be unrolled from the stored hidden
// state of the first slot.
// That hidden state is already multiplied by the mask of
// the first slot.
//
// The caller must read the entire channel to prevent a
// resource leak.
func (r *RolloutBuffer) RecurrentMinibatches(advantages [][]float64, numMiniBatch int,
	gen *rand.Rand) (<-chan *Minibatch, error) {
	if numMiniBatch < 1 || numMiniBatch > r.NumLanes {
		return nil, ErrTooManyMinibatches
	}
	perm := gen.Perm(r.NumLanes)
	res := make(chan *Minibatch, 1)
	go func() {
		defer close(res)
		for _, lanes := range partition(perm, numMiniBatch) {
			res <- r.recurrentBatch(lanes, advantages)
		}
	}()
	return res, nil
}

// FullBatch produces a single minibatch with every stored
// transition.
//
// If recurrent is true, the batch is laid out like the
// batches from RecurrentMinibatches.
func (r *RolloutBuffer) FullBatch(advantages [][]float64, recurrent bool) *Minibatch {
	if recurrent {
		lanes := make([]int, r.NumLanes)
		for i := range lanes {
			lanes[i] = i
		}
		return r.recurrentBatch(lanes, advantages)
	}
	indices := make([]sampleIndex, 0, r.NumSteps*r.NumLanes)
	for t := 0; t < r.NumSteps; t++ {
		for lane := 0; lane < r.NumLanes; lane++ {
			indices = append(indices, sampleIndex{Step: t, Lane: lane})
		}
	}
	return r.feedForwardBatch(indices, advantages)
}

func (r *RolloutBuffer) feedForwardBatch(indices []sampleIndex,
	advantages [][]float64) *Minibatch {
	var b minibatchBuilder
	for _, idx := range indices {
		b.AddSample(r, idx, advantages)
		b.Hidden = append(b.Hidden, r.laneHidden(idx)...)
	}
	return b.Build(r, 1, len(indices))
}

func (r *RolloutBuffer) recurrentBatch(lanes []int, advantages [][]float64) *Minibatch {
	var b minibatchBuilder
	for t := 0; t < r.NumSteps; t++ {
		for _, lane := range lanes {
			b.AddSample(r, sampleIndex{Step: t, Lane: lane}, advantages)
		}
	}
	for _, lane := range lanes {
		mask := r.masks[0][lane]
		for _, x := range r.laneHidden(sampleIndex{Step: 0, Lane: lane}) {
			b.Hidden = append(b.Hidden, x*mask)
		}
	}
	return b.Build(r, r.NumSteps, len(lanes))
}

func (r *RolloutBuffer) laneHidden(idx sampleIndex) []float64 {
	return laneRow(r.hidden[idx.Step], idx.Lane, r.HiddenSize)
}

func laneRow(row []float64, lane, size int) []float64 {
	return row[lane*size : (lane+1)*size]
}

type minibatchBuilder struct {
	Obs         []float64
	Masks       []float64
	Actions     []float64
	Hidden      []float64
	OldValues   []float64
	OldLogProbs []float64
	Returns     []float64
	Advantages  []float64
}

func (m *minibatchBuilder) AddSample(r *RolloutBuffer, idx sampleIndex,
	advantages [][]float64) {
	t, lane := idx.Step, idx.Lane
	m.Obs = append(m.Obs, laneRow(r.obs[t], lane, r.ObsSize)...)
	m.Masks = append(m.Masks, r.masks[t][lane])
	m.Actions = append(m.Actions, laneRow(r.actions[t], lane, r.ActionSize)...)
	m.OldValues = append(m.OldValues, r.values[t][lane])
	m.OldLogProbs = append(m.OldLogProbs, r.logProbs[t][lane])
	m.Returns = append(m.Returns, r.returns[t][lane])
	m.Advantages = append(m.Advantages, advantages[t][lane])
}

func (m *minibatchBuilder) Build(r *RolloutBuffer, numSteps, numLanes int) *Minibatch {
	c := r.Creator
	return &Minibatch{
		Size:        numSteps * numLanes,
		NumSteps:    numSteps,
		NumLanes:    numLanes,
		Obs:         floatsToVec(c, m.Obs),
		Masks:       floatsToVec(c, m.Masks),
		Actions:     floatsToVec(c, m.Actions),
		Hidden:      floatsToVec(c, m.Hidden),
		OldValues:   floatsToVec(c, m.OldValues),
		OldLogProbs: floatsToVec(c, m.OldLogProbs),
		Returns:     floatsToVec(c, m.Returns),
		Advantages:  floatsToVec(c, m.Advantages),
	}
}

// partition splits a list into n contiguous parts whose
// sizes differ by at most one.
func partition(list []int, n int) [][]int {
	res := make([][]int, n)
	base, extra := len(list)/n, len(list)%n
	var offset int
	for i := range res {
		size := base
		if i < extra {
			size++
		}
		res[i] = append([]int{}, list[offset:offset+size]...)
		offset += size
	}
	return res
}
