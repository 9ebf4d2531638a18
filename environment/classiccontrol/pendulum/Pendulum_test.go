package pendulum

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// constStarter always starts episodes from the same state
type constStarter struct {
	state []float64
}

func (c constStarter) Start() mat.Vector {
	return mat.NewVecDense(len(c.state), append([]float64(nil),
		c.state...))
}

func TestPendulumEndsOnlyAtCutoff(t *testing.T) {
	cutoff := 5
	p := New(constStarter{make([]float64, ObservationDims)}, cutoff, 1.0)
	p.Reset()

	action := mat.NewVecDense(ActionDims, nil)
	for i := 1; i <= cutoff; i++ {
		_, last := p.Step(action)
		if last != (i == cutoff) {
			t.Errorf("step %v: got last = %v with cutoff %v", i, last,
				cutoff)
		}
	}
}

func TestPendulumUprightCostIsZero(t *testing.T) {
	// An upright, motionless pendulum with no applied torque incurs no
	// cost
	p := New(constStarter{make([]float64, ObservationDims)}, 200, 1.0)
	p.Reset()

	step, _ := p.Step(mat.NewVecDense(ActionDims, nil))
	if math.Abs(step.Reward) > 1e-9 {
		t.Errorf("got reward %v from the upright state, want 0", step.Reward)
	}
}

func TestPendulumClipsTorque(t *testing.T) {
	start := []float64{math.Pi / 2, 0}

	clipped := New(constStarter{start}, 200, 1.0)
	clipped.Reset()
	bounded := New(constStarter{start}, 200, 1.0)
	bounded.Reset()

	over, _ := clipped.Step(mat.NewVecDense(ActionDims,
		[]float64{100 * TorqueBound}))
	at, _ := bounded.Step(mat.NewVecDense(ActionDims,
		[]float64{TorqueBound}))

	for i := 0; i < ObservationDims; i++ {
		if over.Observation.AtVec(i) != at.Observation.AtVec(i) {
			t.Errorf("state feature %v differs between a clipped and an "+
				"in-bounds maximum torque: %v != %v", i,
				over.Observation.AtVec(i), at.Observation.AtVec(i))
		}
	}
}

func TestPendulumSpeedStaysBounded(t *testing.T) {
	p := New(constStarter{[]float64{math.Pi, 0}}, 200, 1.0)
	p.Reset()

	action := mat.NewVecDense(ActionDims, []float64{TorqueBound})
	for i := 0; i < 100; i++ {
		step, _ := p.Step(action)
		if speed := math.Abs(step.Observation.AtVec(1)); speed > SpeedBound {
			t.Fatalf("angular velocity %v exceeds the bound %v", speed,
				SpeedBound)
		}
	}
}
