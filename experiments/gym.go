package experiments

import (
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	gym "github.com/unixpickle/gym-socket-api/binding-go"
)

// gymEnv is an anyrl.Env which closes its gym client.
type gymEnv struct {
	anyrl.Env
	Client gym.Env
}

func newGymEnv(c anyvec.Creator, host, name string) (Env, error) {
	client, err := gym.Make(host, name)
	if err != nil {
		return nil, essentials.AddCtx("connect to gym", err)
	}
	env, err := anyrl.GymEnv(c, client, false)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gymEnv{Env: env, Client: client}, nil
}

func (g *gymEnv) Close() error {
	return g.Client.Close()
}
