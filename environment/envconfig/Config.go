// Package envconfig provides configurations for the environments that
// return-conditioned models can be trained and evaluated on. Each
// configuration fixes the episode step cutoff, the reward scale used to
// normalize returns before they are fed to a model, and the target
// returns that evaluation conditions on.
package envconfig

import (
	"fmt"

	env "github.com/samuelfneumann/godecision/environment"
	"github.com/samuelfneumann/godecision/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/godecision/environment/classiccontrol/pendulum"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Cartpole EnvName = "cartpole"
	Pendulum EnvName = "pendulum"
)

// Config describes one configured environment family.
type Config struct {
	Environment EnvName

	// MaxEpisodeLength is the step cutoff for a single episode
	MaxEpisodeLength int

	// EvalTargets are the raw (unscaled) returns that evaluation
	// conditions the model on
	EvalTargets []float64

	// Scale divides rewards and returns before they reach a model
	Scale float64

	StateDim int
	ActDim   int

	maker env.Maker
}

// For returns the configuration of the named environment. For panics
// if the environment name is not implemented.
func For(name EnvName) Config {
	switch name {
	case Cartpole:
		return Config{
			Environment:      Cartpole,
			MaxEpisodeLength: 500,
			EvalTargets:      []float64{500, 250},
			Scale:            100.0,
			StateDim:         cartpole.ObservationDims,
			ActDim:           cartpole.ActionDims,
			maker:            cartpole.Make(500, 1.0),
		}

	case Pendulum:
		return Config{
			Environment:      Pendulum,
			MaxEpisodeLength: 200,
			EvalTargets:      []float64{-200, -400},
			Scale:            100.0,
			StateDim:         pendulum.ObservationDims,
			ActDim:           pendulum.ActionDims,
			maker:            pendulum.Make(200, 1.0),
		}
	}

	panic(fmt.Sprintf("for: environment %v not implemented", name))
}

// CreateEnvs constructs n independent instances of the configured
// environment, seeded deterministically from seed.
func (c Config) CreateEnvs(n int, seed uint64) []env.Environment {
	envs := make([]env.Environment, n)
	for i := range envs {
		envs[i] = c.maker(seed + uint64(i))
	}
	return envs
}
