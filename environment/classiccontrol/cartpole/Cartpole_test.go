package cartpole

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

func TestCartpoleReset(t *testing.T) {
	c := Make(500, 1.0)(14)

	first := c.Reset()
	if !first.First() {
		t.Error("reset did not return a first timestep")
	}
	if first.Observation.Len() != ObservationDims {
		t.Fatalf("got observation of size %v, want %v",
			first.Observation.Len(), ObservationDims)
	}
	for i := 0; i < ObservationDims; i++ {
		if math.Abs(first.Observation.AtVec(i)) > StartBounds {
			t.Errorf("starting state feature %v is %v, outside +/- %v", i,
				first.Observation.AtVec(i), StartBounds)
		}
	}
}

func TestCartpoleStepCutoff(t *testing.T) {
	// From a perfectly balanced start with no applied force the pole
	// never falls, so the episode must end exactly at the cutoff
	cutoff := 10
	c := New(constStarter{make([]float64, ObservationDims)}, cutoff, 1.0)
	c.Reset()

	action := mat.NewVecDense(ActionDims, nil)
	for i := 1; i <= cutoff; i++ {
		step, last := c.Step(action)

		if step.Reward != 1.0 {
			t.Errorf("step %v: got reward %v, want 1 while balanced", i,
				step.Reward)
		}
		if last != (i == cutoff) {
			t.Errorf("step %v: got last = %v with cutoff %v", i, last,
				cutoff)
		}
	}
}

func TestCartpoleFailEndsEpisode(t *testing.T) {
	// Start the pole just inside the fail angle and falling fast so
	// that the very first step pushes it past the fail angle
	start := []float64{0, 0, FailAngle - 0.01, 2.0}
	c := New(constStarter{start}, 500, 1.0)
	c.Reset()

	step, last := c.Step(mat.NewVecDense(ActionDims, nil))
	if !last {
		t.Error("expected the episode to end when the pole falls")
	}
	if step.Reward != -1.0 {
		t.Errorf("got reward %v on the failing step, want -1", step.Reward)
	}
}
