package evaluation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	env "github.com/samuelfneumann/godecision/environment"
	"github.com/samuelfneumann/godecision/spec"
	"github.com/samuelfneumann/godecision/timestep"
)

const tolerance float64 = 1e-12

// scriptedEnv emits a constant observation and a constant reward on
// every step, signalling terminal on step terminalAt. A terminalAt of 0
// means the episode never terminates on its own.
type scriptedEnv struct {
	stateDim   int
	obsValue   float64
	reward     float64
	terminalAt int

	steps int
}

func (s *scriptedEnv) observation() mat.Vector {
	obs := make([]float64, s.stateDim)
	for i := range obs {
		obs[i] = s.obsValue
	}
	return mat.NewVecDense(s.stateDim, obs)
}

func (s *scriptedEnv) Reset() timestep.TimeStep {
	s.steps = 0
	return timestep.New(timestep.First, 0, 1, s.observation(), 0)
}

func (s *scriptedEnv) Step(_ mat.Vector) (timestep.TimeStep, bool) {
	s.steps++

	stepType := timestep.Mid
	last := s.terminalAt > 0 && s.steps >= s.terminalAt
	if last {
		stepType = timestep.Last
	}

	return timestep.New(stepType, s.reward, 1, s.observation(),
		s.steps), last
}

func (s *scriptedEnv) ObservationSpec() spec.Environment {
	return spec.Environment{}
}

func (s *scriptedEnv) ActionSpec() spec.Environment {
	return spec.Environment{}
}

// recordingModel predicts zero actions and records the inputs of every
// invocation
type recordingModel struct {
	actDim int

	calls       int
	stateShapes [][]int
	firstStates [][]float64
	lastTargets [][]float64
	timesteps   [][]int
}

func (r *recordingModel) BatchAction(states, actions, rewards,
	returnsToGo *tensor.Dense, timesteps []int) (*mat.Dense, error) {
	r.calls++

	shape := states.Shape()
	n, length := shape[0], shape[1]
	r.stateShapes = append(r.stateShapes, []int{shape[0], shape[1], shape[2]})

	stateData := states.Data().([]float64)
	r.firstStates = append(r.firstStates,
		append([]float64(nil), stateData[:shape[2]]...))

	// Record the newest conditioning target of every episode
	targetData := returnsToGo.Data().([]float64)
	last := make([]float64, n)
	for i := 0; i < n; i++ {
		last[i] = targetData[i*length+length-1]
	}
	r.lastTargets = append(r.lastTargets, last)

	r.timesteps = append(r.timesteps, append([]int(nil), timesteps...))

	return mat.NewDense(n, r.actDim, nil), nil
}

func constantStats(dim int, mean, std float64) ([]float64, []float64) {
	means := make([]float64, dim)
	stds := make([]float64, dim)
	for i := 0; i < dim; i++ {
		means[i] = mean
		stds[i] = std
	}
	return means, stds
}

func TestRunStopsAtTerminal(t *testing.T) {
	// The environment terminates on its 3rd step with maxEpLen 5, so
	// the episode must count exactly 3 steps, terminal step included
	e := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1, terminalAt: 3}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	p, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 5, 10,
		false, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}

	result, err := p.Run(20)
	if err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	if result.LengthMean != 3 {
		t.Errorf("got episode length %v, want 3", result.LengthMean)
	}
	if result.ReturnMean != 3 {
		t.Errorf("got episode return %v, want 3", result.ReturnMean)
	}
	if m.calls != 3 {
		t.Errorf("model was invoked %v times, want 3 before the early exit",
			m.calls)
	}
}

func TestRunStopsAtStepCap(t *testing.T) {
	e := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	p, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 4, 10,
		false, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}

	result, err := p.Run(20)
	if err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	if result.LengthMean != 4 {
		t.Errorf("got episode length %v, want the step cap 4",
			result.LengthMean)
	}
	if m.calls != 4 {
		t.Errorf("model was invoked %v times, want 4", m.calls)
	}
}

func TestRunDecaysTargets(t *testing.T) {
	// With target 20, scale 10 and per-step reward 1, the newest
	// conditioning target must follow 2.0, 1.9, 1.8, ...
	e := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	p, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 3, 10,
		false, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}
	if _, err := p.Run(20); err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	want := []float64{2.0, 1.9, 1.8}
	for call, targets := range m.lastTargets {
		if math.Abs(targets[0]-want[call]) > tolerance {
			t.Errorf("conditioning target on call %v: got %v, want %v",
				call, targets[0], want[call])
		}
	}
}

func TestRunDelayedTargetsStayConstant(t *testing.T) {
	e := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	p, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 3, 10,
		true, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}
	if _, err := p.Run(20); err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	for call, targets := range m.lastTargets {
		if math.Abs(targets[0]-2.0) > tolerance {
			t.Errorf("conditioning target on call %v: got %v, want the "+
				"constant 2", call, targets[0])
		}
	}
}

func TestRunKeepsEpisodesInLockstep(t *testing.T) {
	// The first episode terminates on step 2 but the second runs to the
	// cap, so the finished episode's buffers keep growing while its
	// return and length freeze
	short := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1, terminalAt: 2}
	long := &scriptedEnv{stateDim: 2, obsValue: 3, reward: 2}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	p, err := NewParallelEvaluator([]env.Environment{short, long}, m, 2, 1,
		4, 10, false, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}

	result, err := p.Run(20)
	if err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	// Returns 2 and 8, lengths 2 and 4
	if math.Abs(result.ReturnMean-5) > tolerance {
		t.Errorf("got mean return %v, want 5", result.ReturnMean)
	}
	if math.Abs(result.LengthMean-3) > tolerance {
		t.Errorf("got mean length %v, want 3", result.LengthMean)
	}

	// Every invocation carries both episodes over the same shared
	// 1-indexed timestep sequence
	for call, shape := range m.stateShapes {
		if shape[0] != 2 || shape[1] != call+1 || shape[2] != 2 {
			t.Errorf("call %v: got state shape %v, want [2 %v 2]", call,
				shape, call+1)
		}
	}
	final := m.timesteps[len(m.timesteps)-1]
	for i, ts := range final {
		if ts != i+1 {
			t.Errorf("shared timestep at %v is %v, want %v", i, ts, i+1)
		}
	}
}

func TestRunNormalizesObservations(t *testing.T) {
	e := &scriptedEnv{stateDim: 2, obsValue: 5, reward: 1, terminalAt: 1}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 5, 2)

	p, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 3, 10,
		false, mean, std)
	if err != nil {
		t.Fatalf("could not create evaluator: %v", err)
	}
	if _, err := p.Run(20); err != nil {
		t.Fatalf("could not run evaluation: %v", err)
	}

	for i, s := range m.firstStates[0] {
		if math.Abs(s) > tolerance {
			t.Errorf("normalized observation feature %v: got %v, want 0",
				i, s)
		}
	}
}

func TestNewParallelEvaluatorValidates(t *testing.T) {
	e := &scriptedEnv{stateDim: 2, obsValue: 1, reward: 1}
	m := &recordingModel{actDim: 1}
	mean, std := constantStats(2, 0, 1)

	if _, err := NewParallelEvaluator(nil, m, 2, 1, 5, 10, false, mean,
		std); err == nil {
		t.Error("expected an error for no environment instances")
	}
	if _, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 0,
		10, false, mean, std); err == nil {
		t.Error("expected an error for a non-positive step cap")
	}
	if _, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 5,
		0, false, mean, std); err == nil {
		t.Error("expected an error for a non-positive scale")
	}
	if _, err := NewParallelEvaluator([]env.Environment{e}, m, 2, 1, 5,
		10, false, mean[:1], std); err == nil {
		t.Error("expected an error for mismatched normalization statistics")
	}
}
