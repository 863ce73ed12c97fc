package onpolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&namedPolicy{}).SerializerType(),
		func(d []byte) (*namedPolicy, error) {
			return &namedPolicy{Name: string(d)}, nil
		})
}

func TestCheckpointerRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "run")
	cp := &Checkpointer{Dir: dir, EnvName: "CartPole"}
	policy := &namedPolicy{
		linearPolicy: newLinearPolicy(anyvec64.DefaultCreator{}, 2, 2),
		Name:         "hello",
	}
	stats := NewRunningMeanStd(3)
	stats.Update([][]float64{{1, 2, 3}, {3, 2, 1}})

	for i := 0; i < 2; i++ {
		// Saving twice checks that an existing directory is
		// tolerated.
		if err := cp.Save(policy, stats); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "CartPole.policy")); err != nil {
		t.Fatal(err)
	}

	var loaded *namedPolicy
	var data serializer.Bytes
	if err := serializer.LoadAny(cp.Path(), &loaded, &data); err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "hello" {
		t.Errorf("expected name hello but got %s", loaded.Name)
	}
	loadedStats, err := LoadStats(data)
	if err != nil {
		t.Fatal(err)
	}
	if !floatsEqual(loadedStats.Mean, stats.Mean) || !floatsEqual(loadedStats.Var, stats.Var) ||
		loadedStats.Count != stats.Count {
		t.Errorf("expected stats %+v but got %+v", stats, loadedStats)
	}
}

func TestCheckpointerNoStats(t *testing.T) {
	cp := &Checkpointer{Dir: t.TempDir(), EnvName: "env"}
	policy := &namedPolicy{
		linearPolicy: newLinearPolicy(anyvec64.DefaultCreator{}, 2, 2),
	}
	if err := cp.Save(policy, nil); err != nil {
		t.Fatal(err)
	}
	var loaded *namedPolicy
	var data serializer.Bytes
	if err := serializer.LoadAny(cp.Path(), &loaded, &data); err != nil {
		t.Fatal(err)
	}
	stats, err := LoadStats(data)
	if err != nil || stats != nil {
		t.Errorf("expected nil stats but got %v (err %v)", stats, err)
	}
}

func TestCheckpointerUnserializable(t *testing.T) {
	cp := &Checkpointer{Dir: t.TempDir(), EnvName: "env"}
	err := cp.Save(newLinearPolicy(anyvec64.DefaultCreator{}, 2, 2), nil)
	if err == nil {
		t.Error("expected an error")
	}
}

// namedPolicy is a Policy which serializes its name.
type namedPolicy struct {
	*linearPolicy
	Name string
}

func (n *namedPolicy) SerializerType() string {
	return "github.com/unixpickle/onpolicy.namedPolicy"
}

func (n *namedPolicy) Serialize() ([]byte, error) {
	return []byte(n.Name), nil
}
