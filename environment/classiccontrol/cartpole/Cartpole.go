// Package cartpole implements the Cartpole classic control environment
// with a continuous action space.
//
// In this environment, a pole is attached to a cart which can move
// horizontally. The agent applies a horizontal force to the cart to
// keep the pole balanced upright for as long as possible.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity.
//
// Actions are continuous and 1-dimensional: the fraction of the
// maximum force to apply to the cart, in [-1, 1]. Actions outside this
// range are clipped.
package cartpole

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/godecision/environment"
	"github.com/samuelfneumann/godecision/spec"
	ts "github.com/samuelfneumann/godecision/timestep"
	"github.com/samuelfneumann/godecision/utils/floatutils"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // maximum force applied to the cart
	Dt             float64 = 0.02 // seconds between state updates

	// Bounds (+/-) on state variables
	PositionBounds        float64 = 2.4
	SpeedBounds           float64 = math.MaxFloat64
	AngleBounds           float64 = math.Pi
	AngularVelocityBounds float64 = math.MaxFloat64

	// FailAngle is the pole angle beyond which the balance task fails
	FailAngle float64 = 12 * 2 * math.Pi / 360

	// Bounds (+/-) on the continuous action
	ActionBounds float64 = 1.0

	ObservationDims int = 4
	ActionDims      int = 1

	// StartBounds is the +/- interval that all starting state features
	// are drawn from
	StartBounds float64 = 0.05
)

// Cartpole implements the balance task on the classic control cartpole
// environment. Rewards are +1 on every step on which the pole is
// within FailAngle of vertical and -1 otherwise. Episodes end when the
// pole falls past FailAngle, when the cart leaves the track, or after
// a step cutoff.
//
// Cartpole implements the environment.Environment interface
type Cartpole struct {
	env.Starter
	lastStep       ts.TimeStep
	discount       float64
	stepCutoff     int
	positionBounds r1.Interval
	angleBounds    r1.Interval
	actionBounds   r1.Interval
}

// New constructs a new Cartpole environment with a step cutoff of
// stepCutoff. Starting states are drawn from the Starter s.
func New(s env.Starter, stepCutoff int, discount float64) *Cartpole {
	cartpole := &Cartpole{
		Starter:        s,
		discount:       discount,
		stepCutoff:     stepCutoff,
		positionBounds: r1.Interval{Min: -PositionBounds, Max: PositionBounds},
		angleBounds:    r1.Interval{Min: -AngleBounds, Max: AngleBounds},
		actionBounds:   r1.Interval{Min: -ActionBounds, Max: ActionBounds},
	}
	cartpole.Reset()

	return cartpole
}

// Make returns an environment.Maker that constructs independent
// Cartpole instances with default starting state bounds and the given
// step cutoff.
func Make(stepCutoff int, discount float64) env.Maker {
	return func(seed uint64) env.Environment {
		bounds := r1.Interval{Min: -StartBounds, Max: StartBounds}
		s := env.NewUniformStarter([]r1.Interval{
			bounds,
			bounds,
			bounds,
			bounds,
		}, seed)

		return New(s, stepCutoff, discount)
	}
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (c *Cartpole) Reset() ts.TimeStep {
	state := c.Start()

	startStep := ts.New(ts.First, 0, c.discount, state, 0)
	c.lastStep = startStep

	return startStep
}

// Step takes one environmental step given action a and returns the next
// state as a timestep.TimeStep and a bool indicating whether or not the
// episode has ended
func (c *Cartpole) Step(a mat.Vector) (ts.TimeStep, bool) {
	force := ForceMag * floatutils.ClipInterval(a.AtVec(0), c.actionBounds)

	// Get state variables
	state := c.lastStep.Observation
	x, xDot := state.AtVec(0), state.AtVec(1)
	th, thDot := state.AtVec(2), state.AtVec(3)

	// Calculate physical variables to determine the next state
	cosTheta := math.Cos(th)
	sinTheta := math.Sin(th)

	totalMass := PoleMass + CartMass
	poleMassOverLength := PoleMass / HalfPoleLength

	temp := (force + poleMassOverLength*thDot*thDot*sinTheta) / totalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassOverLength*thAcc*cosTheta/totalMass

	// Update state variables using Euler kinematic integration
	x += Dt * xDot
	xDot += Dt * xAcc
	th = normalizeAngle(th+Dt*thDot, c.angleBounds)
	thDot += Dt * thAcc

	newState := mat.NewVecDense(4, []float64{x, xDot, th, thDot})

	reward := 1.0
	if math.Abs(th) >= FailAngle {
		reward = -1.0
	}

	nextStep := ts.New(ts.Mid, reward, c.discount, newState,
		c.lastStep.Number+1)

	// Check if the step ends the episode
	if c.failed(x, th) || nextStep.Number >= c.stepCutoff {
		nextStep.StepType = ts.Last
	}

	c.lastStep = nextStep
	return nextStep, nextStep.Last()
}

// failed returns whether the cart has left the track or the pole has
// fallen past the fail angle
func (c *Cartpole) failed(x, th float64) bool {
	return x <= c.positionBounds.Min || x >= c.positionBounds.Max ||
		math.Abs(th) >= FailAngle
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Cartpole) ObservationSpec() spec.Environment {
	shape := mat.NewVecDense(ObservationDims, nil)

	lower := []float64{c.positionBounds.Min, -SpeedBounds,
		c.angleBounds.Min, -AngularVelocityBounds}
	lowerBound := mat.NewVecDense(ObservationDims, lower)

	upper := []float64{c.positionBounds.Max, SpeedBounds,
		c.angleBounds.Max, AngularVelocityBounds}
	upperBound := mat.NewVecDense(ObservationDims, upper)

	return spec.NewEnvironment(shape, spec.Observation, lowerBound,
		upperBound, spec.Continuous)
}

// ActionSpec returns the action specification of the environment
func (c *Cartpole) ActionSpec() spec.Environment {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{-ActionBounds})
	upperBound := mat.NewVecDense(ActionDims, []float64{ActionBounds})

	return spec.NewEnvironment(shape, spec.Action, lowerBound,
		upperBound, spec.Continuous)
}

// normalizeAngle normalizes the pole angle to the appropriate limits
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	if angleBounds.Max != -angleBounds.Min {
		panic("angle bounds should be centered around 0")
	}

	if th > angleBounds.Max {
		divisor := int(th / angleBounds.Max)
		return -math.Pi + th - (angleBounds.Max * float64(divisor))
	} else if th < angleBounds.Min {
		divisor := int(th / angleBounds.Min)
		return math.Pi + th - (angleBounds.Min * float64(divisor))
	}
	return th
}
