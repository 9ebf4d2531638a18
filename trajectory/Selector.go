package trajectory

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/godecision/utils/intutils"
)

// Selection is the subset of trajectories usable for training: the
// highest-return trajectories whose cumulative step count fits within
// a timestep budget, each carrying a sampling weight proportional to
// its length.
//
// A Selection is read-only after construction.
type Selection struct {
	indices      []int
	probs        []float64
	numTimesteps int
}

// Select ranks trajectories by total return and keeps the best ones
// until adding the next would exceed the timestep budget
// floor(pctTraj * total timesteps), with a minimum budget of 1. The
// single highest-return trajectory is always kept, even if it alone
// exceeds the budget. Ties in return keep their ascending-index order.
//
// pctTraj must be in (0, 1]; pctTraj = 1 selects every trajectory.
func Select(store *Store, pctTraj float64) (*Selection, error) {
	if pctTraj <= 0 || pctTraj > 1 {
		return nil, fmt.Errorf("select: pctTraj must be in (0, 1], "+
			"got %v", pctTraj)
	}

	n := store.NumTrajectories()
	lengths := store.Lengths()
	returns := store.Returns()

	budget := intutils.Max(int(pctTraj*float64(store.NumTimesteps())), 1)

	// Rank trajectory indices by total return, lowest to highest
	sorted := make([]int, n)
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return returns[sorted[i]] < returns[sorted[j]]
	})

	// Walk from the highest-return trajectory downward, stopping
	// before the budget would be exceeded
	numTrajectories := 1
	timesteps := lengths[sorted[n-1]]
	for ind := n - 2; ind >= 0 &&
		timesteps+lengths[sorted[ind]] <= budget; ind-- {
		timesteps += lengths[sorted[ind]]
		numTrajectories++
	}
	selected := sorted[n-numTrajectories:]

	// Reweight sampling so that trajectories are drawn in proportion
	// to their length
	totalLen := 0
	for _, idx := range selected {
		totalLen += lengths[idx]
	}
	probs := make([]float64, len(selected))
	for i, idx := range selected {
		probs[i] = float64(lengths[idx]) / float64(totalLen)
	}

	return &Selection{
		indices:      selected,
		probs:        probs,
		numTimesteps: timesteps,
	}, nil
}

// NumSelected returns the number of selected trajectories
func (s *Selection) NumSelected() int {
	return len(s.indices)
}

// NumTimesteps returns the cumulative step count of the selection
func (s *Selection) NumTimesteps() int {
	return s.numTimesteps
}

// Indices returns the selected trajectory indices, ordered from lowest
// to highest return
func (s *Selection) Indices() []int {
	return s.indices
}

// Probabilities returns the per-trajectory sampling weights. The
// weights sum to 1.
func (s *Selection) Probabilities() []float64 {
	return s.probs
}
