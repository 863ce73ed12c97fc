package onpolicy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// A NormalizationProvider exposes the observation
// statistics used by an environment wrapper.
//
// Consumers of the statistics must treat them as
// read-only.
type NormalizationProvider interface {
	ObsStats() *RunningMeanStd
}

// RunningMeanStd tracks the per-component mean and
// variance of a stream of vectors.
type RunningMeanStd struct {
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Count float64   `json:"count"`
}

// NewRunningMeanStd creates statistics for vectors of the
// given size.
//
// The count starts at a tiny value so that the first
// batch dominates the initial estimate.
func NewRunningMeanStd(size int) *RunningMeanStd {
	r := &RunningMeanStd{
		Mean:  make([]float64, size),
		Var:   make([]float64, size),
		Count: 1e-4,
	}
	for i := range r.Var {
		r.Var[i] = 1
	}
	return r
}

// Update merges a batch of vectors into the statistics.
func (r *RunningMeanStd) Update(batch [][]float64) {
	if len(batch) == 0 {
		return
	}
	column := make([]float64, len(batch))
	batchCount := float64(len(batch))
	totalCount := r.Count + batchCount
	for i := range r.Mean {
		for j, vec := range batch {
			column[j] = vec[i]
		}
		batchMean, batchVar := stat.PopMeanVariance(column, nil)
		delta := batchMean - r.Mean[i]
		m2 := r.Var[i]*r.Count + batchVar*batchCount +
			delta*delta*r.Count*batchCount/totalCount
		r.Mean[i] += delta * batchCount / totalCount
		r.Var[i] = m2 / totalCount
	}
	r.Count = totalCount
}

// Filter normalizes a vector without modifying the
// statistics, clipping each component to [-clip, clip].
func (r *RunningMeanStd) Filter(vec []float64, clip, epsilon float64) []float64 {
	res := make([]float64, len(vec))
	for i, x := range vec {
		y := (x - r.Mean[i]) / math.Sqrt(r.Var[i]+epsilon)
		res[i] = math.Max(-clip, math.Min(clip, y))
	}
	return res
}

// Copy creates a deep copy of the statistics.
func (r *RunningMeanStd) Copy() *RunningMeanStd {
	return &RunningMeanStd{
		Mean:  append([]float64{}, r.Mean...),
		Var:   append([]float64{}, r.Var...),
		Count: r.Count,
	}
}
