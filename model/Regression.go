package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/godecision/trajectory"
)

// Regression is the simple-regression behavior cloning baseline: a
// linear read-out of the most recent state. It ignores the reward,
// return-to-go, and timestep conditioning channels entirely, which is
// what makes it a baseline for the return-conditioned sequence model.
//
// Regression also implements the experiment.Trainer interface with a
// least-mean-squares update on the final window position of each batch
// row.
type Regression struct {
	stateDim     int
	actDim       int
	learningRate float64

	weights *mat.Dense
	bias    *mat.VecDense
}

// NewRegression returns a zero-initialized Regression baseline
func NewRegression(stateDim, actDim int, learningRate float64) *Regression {
	return &Regression{
		stateDim:     stateDim,
		actDim:       actDim,
		learningRate: learningRate,
		weights:      mat.NewDense(actDim, stateDim, nil),
		bias:         mat.NewVecDense(actDim, nil),
	}
}

// BatchAction predicts one action per episode from each episode's most
// recent normalized state
func (r *Regression) BatchAction(states, _, _, _ *tensor.Dense,
	_ []int) (*mat.Dense, error) {
	shape := states.Shape()
	if len(shape) != 3 || shape[2] != r.stateDim {
		return nil, fmt.Errorf("batchAction: expected states of shape "+
			"(N, T, %v), got %v", r.stateDim, shape)
	}
	episodes, length := shape[0], shape[1]
	backing := states.Data().([]float64)

	out := mat.NewDense(episodes, r.actDim, nil)
	for i := 0; i < episodes; i++ {
		last := (i*length + length - 1) * r.stateDim
		state := mat.NewVecDense(r.stateDim, backing[last:last+r.stateDim])

		var action mat.VecDense
		action.MulVec(r.weights, state)
		action.AddVec(&action, r.bias)
		out.SetRow(i, action.RawVector().Data)
	}

	return out, nil
}

// TrainStep performs one least-mean-squares update on the final window
// position of every row in the batch and returns the mean squared
// error at those positions before the update.
func (r *Regression) TrainStep(batch *trajectory.Batch) (float64, error) {
	states := batch.States.Data().([]float64)
	actions := batch.Actions.Data().([]float64)

	shape := batch.States.Shape()
	batchSize, maxLen := shape[0], shape[1]

	loss := 0.0
	for i := 0; i < batchSize; i++ {
		// The window suffix is right-aligned, so the final position of
		// every row is always valid
		last := i*maxLen + maxLen - 1
		state := mat.NewVecDense(r.stateDim,
			states[last*r.stateDim:(last+1)*r.stateDim])
		target := mat.NewVecDense(r.actDim,
			actions[last*r.actDim:(last+1)*r.actDim])

		var predicted, residual mat.VecDense
		predicted.MulVec(r.weights, state)
		predicted.AddVec(&predicted, r.bias)
		residual.SubVec(target, &predicted)

		loss += mat.Dot(&residual, &residual) / float64(r.actDim)

		step := r.learningRate / float64(batchSize)
		var update mat.Dense
		update.Outer(step, &residual, state)
		r.weights.Add(r.weights, &update)
		r.bias.AddScaledVec(r.bias, step, &residual)
	}

	return loss / float64(batchSize), nil
}
