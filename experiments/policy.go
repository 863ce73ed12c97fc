package experiments

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/onpolicy"
	"github.com/unixpickle/serializer"
)

func init() {
	var p MLPPolicy
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializeMLPPolicy)
}

// MLPPolicy is an actor-critic network with a discrete
// action space.
//
// Observations pass through a shared base network.
// A recurrent policy then updates its hidden state as
// h' = tanh(In(features) + Rec(h*mask)), and the actor
// and critic heads read the new hidden state.
type MLPPolicy struct {
	Base anynet.Net

	// Recur is empty for feed-forward policies, or
	// contains the input and state transforms.
	Recur anynet.Net

	Actor  *anynet.FC
	Critic *anynet.FC

	ActionSpace anyrl.Softmax
}

// NewMLPPolicy creates a randomly initialized policy.
func NewMLPPolicy(c anyvec.Creator, obsSize, numActions, hiddenSize int,
	recurrent bool) *MLPPolicy {
	res := &MLPPolicy{
		Base: anynet.Net{
			anynet.NewFC(c, obsSize, hiddenSize),
			anynet.Tanh,
			anynet.NewFC(c, hiddenSize, hiddenSize),
			anynet.Tanh,
		},
		Actor:  anynet.NewFC(c, hiddenSize, numActions),
		Critic: anynet.NewFC(c, hiddenSize, 1),
	}
	if recurrent {
		res.Recur = anynet.Net{
			anynet.NewFC(c, hiddenSize, hiddenSize),
			anynet.NewFC(c, hiddenSize, hiddenSize),
		}
	}

	// Start out close to a uniform distribution.
	res.Actor.Weights.Vector.Scale(c.MakeNumeric(0.01))

	return res
}

// DeserializeMLPPolicy deserializes an MLPPolicy.
func DeserializeMLPPolicy(d []byte) (res *MLPPolicy, err error) {
	defer essentials.AddCtxTo("deserialize MLPPolicy", &err)
	res = &MLPPolicy{}
	err = serializer.DeserializeAny(d, &res.Base, &res.Recur, &res.Actor,
		&res.Critic)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LoadCheckpoint loads a policy and its optional
// observation statistics from a file written by an
// onpolicy.Checkpointer.
func LoadCheckpoint(path string) (policy *MLPPolicy, stats *onpolicy.RunningMeanStd,
	err error) {
	defer essentials.AddCtxTo("load checkpoint", &err)
	var statsData serializer.Bytes
	if err := serializer.LoadAny(path, &policy, &statsData); err != nil {
		return nil, nil, err
	}
	stats, err = onpolicy.LoadStats(statsData)
	if err != nil {
		return nil, nil, err
	}
	return policy, stats, nil
}

// SerializerType returns the unique ID used to serialize
// an MLPPolicy with the serializer package.
func (m *MLPPolicy) SerializerType() string {
	return "github.com/unixpickle/onpolicy/experiments.MLPPolicy"
}

// Serialize serializes the policy.
func (m *MLPPolicy) Serialize() ([]byte, error) {
	return serializer.SerializeAny(m.Base, m.Recur, m.Actor, m.Critic)
}

// Parameters returns the parameters of every layer.
func (m *MLPPolicy) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	res = append(res, m.Base.Parameters()...)
	res = append(res, m.Recur.Parameters()...)
	res = append(res, m.Actor.Parameters()...)
	res = append(res, m.Critic.Parameters()...)
	return res
}

// Recurrent returns true if the policy has a hidden
// state.
func (m *MLPPolicy) Recurrent() bool {
	return len(m.Recur) > 0
}

// ActionSize returns the number of discrete actions.
func (m *MLPPolicy) ActionSize() int {
	return m.Actor.OutCount
}

// HiddenSize returns the size of the hidden state.
//
// Feed-forward policies use a single unused component.
func (m *MLPPolicy) HiddenSize() int {
	if m.Recurrent() {
		return m.Critic.InCount
	}
	return 1
}

// Act samples actions for a batch of observations.
func (m *MLPPolicy) Act(obs, hidden, masks anyvec.Vector,
	deterministic bool) *onpolicy.PolicyOutput {
	n := masks.Len()
	features, newHidden := m.features(obs, hidden, masks, n)
	params := m.Actor.Apply(features, n)
	values := m.Critic.Apply(features, n)

	var actions anyvec.Vector
	if deterministic {
		actions = m.argmax(params.Output(), n)
	} else {
		actions = m.ActionSpace.Sample(params.Output(), n)
	}
	logProbs := m.ActionSpace.LogProb(params, actions, n)

	return &onpolicy.PolicyOutput{
		Values:   values.Output(),
		Actions:  actions,
		LogProbs: logProbs.Output(),
		Hidden:   newHidden,
	}
}

// Value estimates the values of a batch of states.
func (m *MLPPolicy) Value(obs, hidden, masks anyvec.Vector) anyvec.Vector {
	n := masks.Len()
	features, _ := m.features(obs, hidden, masks, n)
	return m.Critic.Apply(features, n).Output()
}

// EvaluateActions computes differentiable values, log
// probabilities, and entropies for a minibatch.
func (m *MLPPolicy) EvaluateActions(b *onpolicy.Minibatch) *onpolicy.Evaluation {
	features := m.Base.Apply(anydiff.NewConst(b.Obs), b.Size)
	if m.Recurrent() {
		size := m.HiddenSize()
		lanes := b.NumLanes
		var states []anydiff.Res
		var h anydiff.Res = anydiff.NewConst(b.Hidden)
		for t := 0; t < b.NumSteps; t++ {
			stepFeatures := anydiff.Slice(features, t*lanes*size, (t+1)*lanes*size)
			stepMasks := b.Masks.Slice(t*lanes, (t+1)*lanes)
			h = m.recur(stepFeatures, h, stepMasks, lanes)
			states = append(states, h)
		}
		features = anydiff.Concat(states...)
	}
	params := m.Actor.Apply(features, b.Size)
	return &onpolicy.Evaluation{
		Values:   m.Critic.Apply(features, b.Size),
		LogProbs: m.ActionSpace.LogProb(params, b.Actions, b.Size),
		Entropy:  m.ActionSpace.Entropy(params, b.Size),
	}
}

// features applies the base network and, for recurrent
// policies, one step of the recurrent layer.
func (m *MLPPolicy) features(obs, hidden, masks anyvec.Vector,
	n int) (anydiff.Res, anyvec.Vector) {
	features := m.Base.Apply(anydiff.NewConst(obs), n)
	if !m.Recurrent() {
		return features, hidden.Copy()
	}
	h := m.recur(features, anydiff.NewConst(hidden), masks, n)
	return h, h.Output()
}

func (m *MLPPolicy) recur(features, hidden anydiff.Res, masks anyvec.Vector,
	n int) anydiff.Res {
	in := m.Recur[0].(*anynet.FC)
	rec := m.Recur[1].(*anynet.FC)

	size := m.HiddenSize()
	maskData := vecToFloats(masks)
	repeated := make([]float64, 0, n*size)
	for _, mask := range maskData {
		for i := 0; i < size; i++ {
			repeated = append(repeated, mask)
		}
	}
	c := masks.Creator()
	masked := anydiff.Mul(hidden, anydiff.NewConst(floatsToVec(c, repeated)))

	return anydiff.Tanh(anydiff.Add(in.Apply(features, n), rec.Apply(masked, n)))
}

func (m *MLPPolicy) argmax(params anyvec.Vector, n int) anyvec.Vector {
	rows := splitRows(vecToFloats(params), n)
	var res []float64
	for _, row := range rows {
		oneHot := make([]float64, len(row))
		best := 0
		for i, x := range row {
			if x > row[best] {
				best = i
			}
		}
		oneHot[best] = 1
		res = append(res, oneHot...)
	}
	return floatsToVec(params.Creator(), res)
}
