// Package trajectory implements storage, selection, and batching of
// offline trajectories for training return-conditioned sequence models
package trajectory

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Trajectory is one complete recorded episode of observation, action,
// reward, and terminal tuples. Trajectories are immutable once loaded
// into a Store, except for the one-time derived ReturnsToGo write and
// the optional delayed-reward transform applied at load time.
type Trajectory struct {
	Observations [][]float64
	Actions      [][]float64
	Rewards      []float64
	Dones        []float64

	// Terminals is the legacy name for Dones in older dataset files.
	// It is renamed to Dones at load time if present.
	Terminals []float64

	// ReturnsToGo is derived at load time: ReturnsToGo[t] is the
	// discounted sum of all rewards from step t to the episode's end
	ReturnsToGo []float64
}

// Len returns the number of steps in the trajectory
func (t *Trajectory) Len() int {
	return len(t.Rewards)
}

// TotalReturn returns the undiscounted sum of all rewards in the
// trajectory
func (t *Trajectory) TotalReturn() float64 {
	return floats.Sum(t.Rewards)
}

// DelayRewards collapses all reward mass onto the final step of the
// trajectory, zeroing every earlier reward. This models the sparse,
// delayed-reward setting and must be applied before ReturnsToGo is
// computed.
func (t *Trajectory) DelayRewards() {
	total := floats.Sum(t.Rewards)
	for i := range t.Rewards {
		t.Rewards[i] = 0
	}
	t.Rewards[len(t.Rewards)-1] = total
}

// validate checks that all per-step fields agree in length and that
// observation and action vectors have consistent dimensions
func (t *Trajectory) validate() error {
	l := t.Len()
	if l == 0 {
		return fmt.Errorf("validate: empty trajectory")
	}
	if len(t.Observations) != l || len(t.Actions) != l ||
		len(t.Dones) != l {
		return fmt.Errorf("validate: inconsistent field lengths "+
			"(observations %v, actions %v, rewards %v, dones %v)",
			len(t.Observations), len(t.Actions), l, len(t.Dones))
	}

	stateDim := len(t.Observations[0])
	actDim := len(t.Actions[0])
	for i := 0; i < l; i++ {
		if len(t.Observations[i]) != stateDim {
			return fmt.Errorf("validate: observation %v has size %v, "+
				"expected %v", i, len(t.Observations[i]), stateDim)
		}
		if len(t.Actions[i]) != actDim {
			return fmt.Errorf("validate: action %v has size %v, "+
				"expected %v", i, len(t.Actions[i]), actDim)
		}
	}
	return nil
}

// DiscountCumSum computes the reversed discounted cumulative sum of x:
// out[t] = x[t] + gamma*out[t+1], with out[len(x)-1] = x[len(x)-1].
// The sum is computed strictly right to left.
func DiscountCumSum(x []float64, gamma float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	out[len(x)-1] = x[len(x)-1]
	for t := len(x) - 2; t >= 0; t-- {
		out[t] = x[t] + gamma*out[t+1]
	}
	return out
}
