package trajectory

import (
	"math"
	"testing"
)

func testSampler(t *testing.T, scale float64) (*Store, *BatchSampler) {
	t.Helper()

	store, err := NewStore([]*Trajectory{
		makeTrajectory(repeatRewards(3, 3), 2, 1, 0),
		makeTrajectory(repeatRewards(10, 10), 2, 1, 10),
	}, false)
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}

	selection, err := Select(store, 1.0)
	if err != nil {
		t.Fatalf("could not select: %v", err)
	}

	sampler, err := NewBatchSampler(store, selection, scale, 42)
	if err != nil {
		t.Fatalf("could not create sampler: %v", err)
	}
	return store, sampler
}

func TestSampleShapes(t *testing.T) {
	_, sampler := testSampler(t, 10)

	batchSize, maxLen := 16, 5
	batch, err := sampler.Sample(batchSize, maxLen)
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	shapes := map[string][]int{
		"states":       batch.States.Shape(),
		"actions":      batch.Actions.Shape(),
		"rewards":      batch.Rewards.Shape(),
		"dones":        batch.Dones.Shape(),
		"returnsToGo":  batch.ReturnsToGo.Shape(),
		"timesteps":    batch.Timesteps.Shape(),
		"mask":         batch.Mask.Shape(),
	}
	want := map[string][]int{
		"states":       {batchSize, maxLen, 2},
		"actions":      {batchSize, maxLen, 1},
		"rewards":      {batchSize, maxLen, 1},
		"dones":        {batchSize, maxLen, 1},
		"returnsToGo":  {batchSize, maxLen, 1},
		"timesteps":    {batchSize, maxLen},
		"mask":         {batchSize, maxLen},
	}

	for name, shape := range shapes {
		if len(shape) != len(want[name]) {
			t.Fatalf("%v has shape %v, want %v", name, shape, want[name])
		}
		for i := range shape {
			if shape[i] != want[name][i] {
				t.Errorf("%v has shape %v, want %v", name, shape,
					want[name])
				break
			}
		}
	}
}

func TestSampleMaskAndPadding(t *testing.T) {
	_, sampler := testSampler(t, 10)

	batchSize, maxLen := 32, 5
	batch, err := sampler.Sample(batchSize, maxLen)
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	mask := batch.Mask.Data().([]bool)
	actions := batch.Actions.Data().([]float64)
	dones := batch.Dones.Data().([]float64)
	timesteps := batch.Timesteps.Data().([]int)

	for i := 0; i < batchSize; i++ {
		row := mask[i*maxLen : (i+1)*maxLen]

		// The mask must be false on a contiguous prefix and true on a
		// contiguous suffix of at least one step
		first := maxLen
		for j, m := range row {
			if m {
				first = j
				break
			}
		}
		if first == maxLen {
			t.Fatalf("row %v has an empty window", i)
		}
		for j := first; j < maxLen; j++ {
			if !row[j] {
				t.Errorf("row %v: mask false at %v inside the window "+
					"suffix", i, j)
			}
		}

		for j := 0; j < maxLen; j++ {
			at := i*maxLen + j
			if !row[j] {
				if actions[at] != ActionPad {
					t.Errorf("row %v: padded action at %v is %v, want %v",
						i, j, actions[at], ActionPad)
				}
				if dones[at] != DonePad {
					t.Errorf("row %v: padded done at %v is %v, want %v",
						i, j, dones[at], DonePad)
				}
				if timesteps[at] != 0 {
					t.Errorf("row %v: padded timestep at %v is %v, want 0",
						i, j, timesteps[at])
				}
			} else if timesteps[at] < 1 {
				t.Errorf("row %v: valid timestep at %v is %v, want a "+
					"positive 1-indexed position", i, j, timesteps[at])
			}
		}

		// Valid timesteps are consecutive absolute positions
		for j := first + 1; j < maxLen; j++ {
			at := i*maxLen + j
			if timesteps[at] != timesteps[at-1]+1 {
				t.Errorf("row %v: timesteps %v -> %v are not consecutive",
					i, timesteps[at-1], timesteps[at])
			}
		}
	}
}

func TestSampleWindowsStayInBounds(t *testing.T) {
	// Both fixture trajectories have per-step reward 1 and gamma 1, so
	// at 0-indexed absolute position s of a length-L trajectory the
	// return-to-go is L-s. Recovering L from each valid slot therefore
	// proves the window never read past its trajectory's bounds.
	scale := 10.0
	_, sampler := testSampler(t, scale)

	batchSize, maxLen := 32, 5
	batch, err := sampler.Sample(batchSize, maxLen)
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	mask := batch.Mask.Data().([]bool)
	rewards := batch.Rewards.Data().([]float64)
	rtg := batch.ReturnsToGo.Data().([]float64)
	timesteps := batch.Timesteps.Data().([]int)

	for at := 0; at < batchSize*maxLen; at++ {
		if !mask[at] {
			continue
		}

		if math.Abs(rewards[at]-1.0) > tolerance {
			t.Errorf("valid reward at %v is %v, want 1", at, rewards[at])
		}

		length := rtg[at]*scale + float64(timesteps[at]) - 1
		if math.Abs(length-3) > 1e-9 && math.Abs(length-10) > 1e-9 {
			t.Errorf("slot %v implies trajectory length %v, want 3 or 10",
				at, length)
		}
		if float64(timesteps[at]) > length+1e-9 {
			t.Errorf("slot %v: timestep %v exceeds trajectory length %v",
				at, timesteps[at], length)
		}
	}
}

func TestSampleNormalizesStates(t *testing.T) {
	_, sampler := testSampler(t, 10)

	batch, err := sampler.Sample(8, 4)
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	for i, s := range batch.States.Data().([]float64) {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Errorf("normalized state at %v is not finite: %v", i, s)
		}
	}
}

func TestSampleRejectsInvalidArguments(t *testing.T) {
	_, sampler := testSampler(t, 10)

	if _, err := sampler.Sample(0, 5); err == nil {
		t.Error("expected an error for batch size 0")
	}
	if _, err := sampler.Sample(5, 0); err == nil {
		t.Error("expected an error for window length 0")
	}
}

func TestNewBatchSamplerRejectsInvalidScale(t *testing.T) {
	store, err := NewStore([]*Trajectory{
		makeTrajectory(repeatRewards(1, 2), 2, 1, 0),
	}, false)
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	selection, err := Select(store, 1.0)
	if err != nil {
		t.Fatalf("could not select: %v", err)
	}

	if _, err := NewBatchSampler(store, selection, 0, 1); err == nil {
		t.Error("expected an error for scale 0")
	}
}
