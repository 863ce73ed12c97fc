package onpolicy

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultHistoryCapacity is the number of recent episode
// rewards kept for progress reports.
const DefaultHistoryCapacity = 100

// RewardHistory is a ring buffer of recent episode
// rewards.
type RewardHistory struct {
	values []float64
	next   int
	full   bool
}

// NewRewardHistory creates an empty history with the
// given capacity.
//
// If capacity is less than 1, DefaultHistoryCapacity is
// used.
func NewRewardHistory(capacity int) *RewardHistory {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &RewardHistory{values: make([]float64, capacity)}
}

// Push adds a reward, evicting the oldest one if the
// history is full.
func (r *RewardHistory) Push(reward float64) {
	r.values[r.next] = reward
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of stored rewards.
func (r *RewardHistory) Len() int {
	if r.full {
		return len(r.values)
	}
	return r.next
}

// Values returns the stored rewards from oldest to
// newest.
func (r *RewardHistory) Values() []float64 {
	if !r.full {
		return append([]float64{}, r.values[:r.next]...)
	}
	return append(append([]float64{}, r.values[r.next:]...), r.values[:r.next]...)
}

// Mean returns the mean reward, or 0 if the history is
// empty.
func (r *RewardHistory) Mean() float64 {
	if r.Len() == 0 {
		return 0
	}
	return stat.Mean(r.Values(), nil)
}

// Median returns the median reward, averaging the middle
// two rewards when there is an even number of them.
func (r *RewardHistory) Median() float64 {
	values := r.Values()
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

// Min returns the smallest reward.
func (r *RewardHistory) Min() float64 {
	if r.Len() == 0 {
		return 0
	}
	return floats.Min(r.Values())
}

// Max returns the largest reward.
func (r *RewardHistory) Max() float64 {
	if r.Len() == 0 {
		return 0
	}
	return floats.Max(r.Values())
}

// PositiveFraction returns the fraction of rewards which
// are greater than zero.
func (r *RewardHistory) PositiveFraction() float64 {
	values := r.Values()
	if len(values) == 0 {
		return 0
	}
	var count int
	for _, x := range values {
		if x > 0 {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// A ReportPolicy decides which rewards an EpisodeRecorder
// puts into its history.
type ReportPolicy int

const (
	// ReportOnTerminal records the reward of the step on
	// which an episode ends.
	// This only reflects episode performance for tasks
	// with sparse rewards.
	ReportOnTerminal ReportPolicy = iota

	// ReportEpisodeTotals accumulates every reward of an
	// episode and records the total when it ends.
	ReportEpisodeTotals
)

// String returns the flag representation of the policy.
func (r ReportPolicy) String() string {
	switch r {
	case ReportOnTerminal:
		return "terminal"
	case ReportEpisodeTotals:
		return "episode"
	default:
		return ""
	}
}

// An EpisodeRecorder feeds per-step rewards from a batch
// of environments into a RewardHistory.
type EpisodeRecorder struct {
	Policy  ReportPolicy
	History *RewardHistory

	totals []float64
}

// Record processes one step of rewards and done flags.
func (e *EpisodeRecorder) Record(rewards []float64, dones []bool) {
	if e.totals == nil {
		e.totals = make([]float64, len(rewards))
	}
	for lane, done := range dones {
		e.totals[lane] += rewards[lane]
		if !done {
			continue
		}
		switch e.Policy {
		case ReportEpisodeTotals:
			e.History.Push(e.totals[lane])
		default:
			e.History.Push(rewards[lane])
		}
		e.totals[lane] = 0
	}
}
