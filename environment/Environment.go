// Package environment outlines the interfaces needed to implement concrete
// simulated environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/godecision/spec"
	"github.com/samuelfneumann/godecision/timestep"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulated environment. Environments start
// ready to use: the first observation is available from Reset. Step
// takes a single action and returns the resulting timestep along with
// a bool indicating whether the episode has ended.
//
// Environments are stepped one instance at a time. No Environment is
// assumed to support batched stepping; callers that run many episodes
// in lockstep must issue one Step call per instance.
type Environment interface {
	Reset() timestep.TimeStep
	Step(action mat.Vector) (timestep.TimeStep, bool)
	ObservationSpec() spec.Environment
	ActionSpec() spec.Environment
}

// Maker constructs independent instances of one environment family.
// Each call returns a fresh environment with its own state, so that
// many episodes can be run side by side.
type Maker func(seed uint64) Environment
