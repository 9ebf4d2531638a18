package trajectory

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/godecision/utils/intutils"
)

const (
	// ActionPad fills action slots on the padded prefix of a batch
	// row. It is part of the batch contract: -10 is outside every
	// valid action range, so consumers can distinguish padding from
	// real actions.
	ActionPad float64 = -10.0

	// DonePad fills done slots on the padded prefix of a batch row.
	// Valid done values are 0 and 1, so 2 marks padding.
	DonePad float64 = 2.0
)

// Batch is a fixed-shape collection of trajectory windows. For a batch
// of size B with window length K over state size S and action size A,
// the shapes are:
//
//	States      (B, K, S) float64, normalized by the store statistics
//	Actions     (B, K, A) float64, ActionPad on the padded prefix
//	Rewards     (B, K, 1) float64
//	Dones       (B, K, 1) float64, DonePad on the padded prefix
//	ReturnsToGo (B, K, 1) float64, divided by the reward scale
//	Timesteps   (B, K)    int, 0 on padding, 1-indexed absolute
//	            positions elsewhere
//	Mask        (B, K)    bool, true exactly on the right-aligned
//	            window suffix
//
// Rewards, Dones, and ReturnsToGo carry a trailing singleton dimension
// so that they concatenate with the vector-valued fields downstream.
type Batch struct {
	States      *tensor.Dense
	Actions     *tensor.Dense
	Rewards     *tensor.Dense
	Dones       *tensor.Dense
	ReturnsToGo *tensor.Dense
	Timesteps   *tensor.Dense
	Mask        *tensor.Dense
}

// BatchSampler draws fixed-shape training batches from a Store by
// weighted trajectory sampling, random windowing, left padding, and
// normalization.
//
// A BatchSampler holds no mutable state shared across calls other than
// its random source; the store and selection weights are read-only for
// the lifetime of the run.
type BatchSampler struct {
	store     *Store
	selection *Selection
	scale     float64

	source rand.Source
	cat    distuv.Categorical
	rng    *rand.Rand
}

// NewBatchSampler returns a BatchSampler that draws trajectories from
// the given Selection with its precomputed weights, scaling every
// return-to-go by 1/scale.
func NewBatchSampler(store *Store, selection *Selection, scale float64,
	seed uint64) (*BatchSampler, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("newBatchSampler: scale must be positive, "+
			"got %v", scale)
	}

	source := rand.NewSource(seed)
	cat := distuv.NewCategorical(selection.Probabilities(), source)

	return &BatchSampler{
		store:     store,
		selection: selection,
		scale:     scale,
		source:    source,
		cat:       cat,
		rng:       rand.New(source),
	}, nil
}

// Sample draws a batch of batchSize windows of length maxLen. Windows
// are drawn with replacement: rows may reuse the same trajectory. A
// window is shorter than maxLen only when its random start lands near
// its trajectory's end; short windows are right-aligned and the prefix
// is padded.
func (b *BatchSampler) Sample(batchSize, maxLen int) (*Batch, error) {
	if batchSize < 1 || maxLen < 1 {
		return nil, fmt.Errorf("sample: batch size (%v) and window "+
			"length (%v) must be positive", batchSize, maxLen)
	}

	stateDim := b.store.StateDim()
	actDim := b.store.ActDim()

	states := make([]float64, batchSize*maxLen*stateDim)
	actions := make([]float64, batchSize*maxLen*actDim)
	rewards := make([]float64, batchSize*maxLen)
	dones := make([]float64, batchSize*maxLen)
	rtg := make([]float64, batchSize*maxLen)
	timesteps := make([]int, batchSize*maxLen)
	mask := make([]bool, batchSize*maxLen)

	for i := range actions {
		actions[i] = ActionPad
	}
	for i := range dones {
		dones[i] = DonePad
	}

	indices := b.selection.Indices()
	for i := 0; i < batchSize; i++ {
		traj := b.store.Trajectory(indices[int(b.cat.Rand())])

		start := b.rng.Intn(traj.Len())
		end := intutils.Min(start+maxLen, traj.Len())
		seqLen := end - start

		// Right-align the window: the first maxLen-seqLen slots of
		// the row stay at their padding values
		rowStart := i*maxLen + (maxLen - seqLen)
		for j := 0; j < seqLen; j++ {
			at := rowStart + j

			copy(states[at*stateDim:(at+1)*stateDim],
				traj.Observations[start+j])
			copy(actions[at*actDim:(at+1)*actDim], traj.Actions[start+j])

			rewards[at] = traj.Rewards[start+j]
			dones[at] = traj.Dones[start+j]
			rtg[at] = traj.ReturnsToGo[start+j] / b.scale

			// Timesteps are 1-indexed absolute positions so that 0 is
			// free to mark padding
			timesteps[at] = start + j + 1
			mask[at] = true
		}
	}

	// Normalize observations in place. Padded state slots are zero
	// before this, so they end up at -mean/std, matching the batch
	// contract of normalizing after assembly.
	b.store.NormalizeStates(states)

	return &Batch{
		States: tensor.New(tensor.WithShape(batchSize, maxLen, stateDim),
			tensor.WithBacking(states)),
		Actions: tensor.New(tensor.WithShape(batchSize, maxLen, actDim),
			tensor.WithBacking(actions)),
		Rewards: tensor.New(tensor.WithShape(batchSize, maxLen, 1),
			tensor.WithBacking(rewards)),
		Dones: tensor.New(tensor.WithShape(batchSize, maxLen, 1),
			tensor.WithBacking(dones)),
		ReturnsToGo: tensor.New(tensor.WithShape(batchSize, maxLen, 1),
			tensor.WithBacking(rtg)),
		Timesteps: tensor.New(tensor.WithShape(batchSize, maxLen),
			tensor.WithBacking(timesteps)),
		Mask: tensor.New(tensor.WithShape(batchSize, maxLen),
			tensor.WithBacking(mask)),
	}, nil
}
