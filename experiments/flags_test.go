package experiments

import (
	"reflect"
	"testing"

	"github.com/spf13/pflag"
	"github.com/unixpickle/onpolicy"
)

func TestAlgorithmFlag(t *testing.T) {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flag := &AlgorithmFlag{Algorithm: onpolicy.A2CAlgorithm}
	flag.AddFlag(f)
	if err := f.Parse([]string{"--algo", "ppo"}); err != nil {
		t.Fatal(err)
	}
	if flag.Algorithm != onpolicy.PPOAlgorithm || flag.String() != "ppo" {
		t.Errorf("expected ppo but got %s", flag)
	}
	if err := flag.Set("sarsa"); err == nil {
		t.Error("expected an error for an unknown algorithm")
	}
	if flag.Algorithm != onpolicy.PPOAlgorithm {
		t.Error("failed Set modified the flag")
	}
}

func TestAddConfigFlags(t *testing.T) {
	cfg := onpolicy.DefaultConfig()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddConfigFlags(f, cfg)

	fields := reflect.TypeOf(*cfg)
	for i := 0; i < fields.NumField(); i++ {
		name := fields.Field(i).Tag.Get("mapstructure")
		if name == "algo" {
			continue
		}
		if f.Lookup(name) == nil {
			t.Errorf("missing flag for %s", name)
		}
	}

	if err := f.Parse([]string{"--lr=0.5", "--num-processes", "3"}); err != nil {
		t.Fatal(err)
	}
	if lr, _ := f.GetFloat64("lr"); lr != 0.5 {
		t.Errorf("expected lr 0.5 but got %f", lr)
	}
	if n, _ := f.GetInt("num-processes"); n != 3 {
		t.Errorf("expected 3 processes but got %d", n)
	}
	if gamma, _ := f.GetFloat64("gamma"); gamma != cfg.Gamma {
		t.Errorf("expected default gamma %f but got %f", cfg.Gamma, gamma)
	}
}
