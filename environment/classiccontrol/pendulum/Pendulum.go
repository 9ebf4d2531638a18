// Package pendulum implements the pendulum classic control environment
// with a continuous action space.
//
// In this environment, a pendulum is attached to a fixed base. The
// agent applies torque at the base to swing the underpowered pendulum
// up and hold it pointing straight up.
//
// State features consist of the angle of the pendulum from the positive
// y-axis and the angular velocity of the pendulum. The sign of the
// angular velocity indicates direction, with negative sign indicating
// counterclockwise rotation. Angles are normalized to stay within
// [-π, π].
//
// Actions are continuous and 1-dimensional: the torque applied to the
// pendulum at its fixed base, in [-TorqueBound, TorqueBound]. Actions
// outside this region are clipped.
package pendulum

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/godecision/environment"
	"github.com/samuelfneumann/godecision/spec"
	ts "github.com/samuelfneumann/godecision/timestep"
	"github.com/samuelfneumann/godecision/utils/floatutils"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- angle bounds
	SpeedBound  float64 = 8.0     // +/- angular velocity bounds
	TorqueBound float64 = 2.0     // +/- torque bounds

	Dt      float64 = 0.05
	Gravity float64 = 9.8
	Mass    float64 = 1.0
	Length  float64 = 1.0

	ObservationDims int = 2
	ActionDims      int = 1

	// StartSpeedBound is the +/- interval that starting angular
	// velocities are drawn from
	StartSpeedBound float64 = 1.0
)

// Pendulum implements the swing-up task on the classic control
// pendulum environment. The reward on each step is the negative cost
// -(θ² + 0.1·ω² + 0.001·τ²), so that holding the pendulum upright and
// still earns the highest reward. Episodes end only at the step
// cutoff.
//
// Pendulum implements the environment.Environment interface
type Pendulum struct {
	env.Starter
	lastStep     ts.TimeStep
	discount     float64
	stepCutoff   int
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
}

// New constructs a new Pendulum environment with a step cutoff of
// stepCutoff. Starting states are drawn from the Starter s.
func New(s env.Starter, stepCutoff int, discount float64) *Pendulum {
	pendulum := &Pendulum{
		Starter:      s,
		discount:     discount,
		stepCutoff:   stepCutoff,
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
	}
	pendulum.Reset()

	return pendulum
}

// Make returns an environment.Maker that constructs independent
// Pendulum instances with default starting state bounds and the given
// step cutoff.
func Make(stepCutoff int, discount float64) env.Maker {
	return func(seed uint64) env.Environment {
		angle := r1.Interval{Min: -AngleBound, Max: AngleBound}
		speed := r1.Interval{Min: -StartSpeedBound, Max: StartSpeedBound}
		s := env.NewUniformStarter([]r1.Interval{angle, speed}, seed)

		return New(s, stepCutoff, discount)
	}
}

// Reset resets the environment and returns a starting state drawn from
// the Starter
func (p *Pendulum) Reset() ts.TimeStep {
	state := p.Start()
	startStep := ts.New(ts.First, 0, p.discount, state, 0)
	p.lastStep = startStep

	return startStep
}

// Step takes one environmental step given action a and returns the next
// state as a timestep.TimeStep and a bool indicating whether or not the
// episode has ended
func (p *Pendulum) Step(a mat.Vector) (ts.TimeStep, bool) {
	obs := p.lastStep.Observation
	th, thDot := obs.AtVec(0), obs.AtVec(1)

	torque := floatutils.ClipInterval(a.AtVec(0), p.torqueBounds)

	newThDot := thDot + (-3*Gravity/(2*Length)*math.Sin(th+math.Pi)+
		3.0/(Mass*math.Pow(Length, 2))*torque)*Dt
	newThDot = floatutils.ClipInterval(newThDot, p.speedBounds)

	newTh := normalizeAngle(th+newThDot*Dt, p.angleBounds)

	newState := mat.NewVecDense(2, []float64{newTh, newThDot})

	// Negative quadratic cost on angle, speed, and applied torque
	reward := -(newTh*newTh + 0.1*newThDot*newThDot + 0.001*torque*torque)

	nextStep := ts.New(ts.Mid, reward, p.discount, newState,
		p.lastStep.Number+1)

	if nextStep.Number >= p.stepCutoff {
		nextStep.StepType = ts.Last
	}

	p.lastStep = nextStep
	return nextStep, nextStep.Last()
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Pendulum) ObservationSpec() spec.Environment {
	shape := mat.NewVecDense(ObservationDims, nil)

	minObs := []float64{p.angleBounds.Min, p.speedBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, minObs)

	maxObs := []float64{p.angleBounds.Max, p.speedBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, maxObs)

	return spec.NewEnvironment(shape, spec.Observation, lowerBound,
		upperBound, spec.Continuous)
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() spec.Environment {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{-TorqueBound})
	upperBound := mat.NewVecDense(ActionDims, []float64{TorqueBound})

	return spec.NewEnvironment(shape, spec.Action, lowerBound,
		upperBound, spec.Continuous)
}

// normalizeAngle normalizes the pendulum angle to the appropriate limits
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
