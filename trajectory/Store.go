package trajectory

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// Gamma is the discount used when deriving returns-to-go. The
	// return-conditioned setting uses undiscounted cumulative future
	// reward.
	Gamma float64 = 1.0

	// StdFloor is added to every observation standard deviation so
	// that constant observation dimensions never divide by zero
	StdFloor float64 = 1e-6
)

// Store holds a fixed offline dataset of trajectories together with
// per-trajectory summary statistics and the global observation
// normalization statistics derived from it.
//
// A Store is read-only after construction: batch samplers and
// evaluators may share one Store without locking since no writes occur
// after load.
type Store struct {
	trajectories []*Trajectory

	lengths      []int
	returns      []float64
	numTimesteps int

	stateDim int
	actDim   int

	stateMean []float64
	stateStd  []float64
}

// LoadStore reads a gob-encoded dataset of trajectories from path and
// constructs a Store from it. A missing or malformed dataset file is
// fatal: the error is returned immediately and never retried. If
// delayed is true, the delayed-reward transform is applied to every
// trajectory before returns-to-go are derived.
func LoadStore(path string, delayed bool) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadStore: could not open dataset: %v", err)
	}
	defer file.Close()

	var trajectories []*Trajectory
	if err := gob.NewDecoder(file).Decode(&trajectories); err != nil {
		return nil, fmt.Errorf("loadStore: could not decode dataset: %v", err)
	}

	return NewStore(trajectories, delayed)
}

// NewStore constructs a Store from already-decoded trajectories. Each
// trajectory is mutated in place by the Dones rename, the optional
// delayed-reward transform, and the derived ReturnsToGo write; this is
// acceptable because trajectories are private to the Store after load.
func NewStore(trajectories []*Trajectory, delayed bool) (*Store, error) {
	if len(trajectories) == 0 {
		return nil, fmt.Errorf("newStore: dataset contains no trajectories")
	}

	s := &Store{
		trajectories: trajectories,
		lengths:      make([]int, len(trajectories)),
		returns:      make([]float64, len(trajectories)),
	}

	for i, traj := range trajectories {
		// Older dataset files store the terminal flags under the
		// legacy name
		if len(traj.Dones) == 0 && len(traj.Terminals) > 0 {
			traj.Dones = traj.Terminals
			traj.Terminals = nil
		}

		if err := traj.validate(); err != nil {
			return nil, fmt.Errorf("newStore: trajectory %v: %v", i, err)
		}

		if delayed {
			traj.DelayRewards()
		}
		traj.ReturnsToGo = DiscountCumSum(traj.Rewards, Gamma)

		s.lengths[i] = traj.Len()
		s.returns[i] = traj.TotalReturn()
		s.numTimesteps += traj.Len()
	}

	s.stateDim = len(trajectories[0].Observations[0])
	s.actDim = len(trajectories[0].Actions[0])
	for i, traj := range trajectories {
		if len(traj.Observations[0]) != s.stateDim {
			return nil, fmt.Errorf("newStore: trajectory %v has state "+
				"size %v, expected %v", i, len(traj.Observations[0]),
				s.stateDim)
		}
		if len(traj.Actions[0]) != s.actDim {
			return nil, fmt.Errorf("newStore: trajectory %v has action "+
				"size %v, expected %v", i, len(traj.Actions[0]), s.actDim)
		}
	}

	s.computeStateStats()

	return s, nil
}

// computeStateStats computes the elementwise mean and standard
// deviation of all observations across all trajectories concatenated.
// The standard deviation is floored so that constant dimensions never
// yield NaN or infinity under normalization.
func (s *Store) computeStateStats() {
	s.stateMean = make([]float64, s.stateDim)
	s.stateStd = make([]float64, s.stateDim)

	dim := make([]float64, s.numTimesteps)
	for d := 0; d < s.stateDim; d++ {
		i := 0
		for _, traj := range s.trajectories {
			for _, obs := range traj.Observations {
				dim[i] = obs[d]
				i++
			}
		}
		s.stateMean[d] = stat.Mean(dim, nil)
		s.stateStd[d] = stat.PopStdDev(dim, nil) + StdFloor
	}
}

// NumTrajectories returns the number of trajectories in the dataset
func (s *Store) NumTrajectories() int {
	return len(s.trajectories)
}

// NumTimesteps returns the total number of steps across all
// trajectories
func (s *Store) NumTimesteps() int {
	return s.numTimesteps
}

// Trajectory returns the i'th trajectory in the dataset
func (s *Store) Trajectory(i int) *Trajectory {
	return s.trajectories[i]
}

// Lengths returns the per-trajectory step counts
func (s *Store) Lengths() []int {
	return s.lengths
}

// Returns returns the per-trajectory total returns
func (s *Store) Returns() []float64 {
	return s.returns
}

// StateDim returns the size of a single observation vector
func (s *Store) StateDim() int {
	return s.stateDim
}

// ActDim returns the size of a single action vector
func (s *Store) ActDim() int {
	return s.actDim
}

// StateMean returns the elementwise mean of all observations
func (s *Store) StateMean() []float64 {
	return s.stateMean
}

// StateStd returns the floored elementwise standard deviation of all
// observations
func (s *Store) StateStd() []float64 {
	return s.stateStd
}

// NormalizeStates normalizes a flat slice of concatenated state
// vectors in place via (state - mean) / std
func (s *Store) NormalizeStates(states []float64) {
	for i := range states {
		d := i % s.stateDim
		states[i] = (states[i] - s.stateMean[d]) / s.stateStd[d]
	}
}

// String returns a summary banner of the dataset
func (s *Store) String() string {
	mean := stat.Mean(s.returns, nil)
	std := stat.PopStdDev(s.returns, nil)

	return fmt.Sprintf("%v trajectories, %v timesteps\n"+
		"Average return: %.2f, std: %.2f\n"+
		"Max return: %.2f, min: %.2f",
		len(s.trajectories), s.numTimesteps, mean, std,
		floats.Max(s.returns), floats.Min(s.returns))
}
