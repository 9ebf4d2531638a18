// Package model defines the contract that predictive models must
// satisfy to be driven by this pipeline, together with a simple
// regression baseline. A model's internal computation, its gradient
// updates, and its optimizer scheduling are the model's own concern.
package model

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Model predicts the next action for each of a batch of episodes given
// their full histories.
//
// For N episodes of current length T over state size S and action size
// A, states has shape (N, T, S) and holds normalized observations,
// actions has shape (N, T, A) with the last slot of each episode still
// a placeholder, rewards has shape (N, T), returnsToGo has shape
// (N, T) and holds the scaled return-to-go conditioning values, and
// timesteps is the length-T sequence of absolute step indices shared
// by all episodes. BatchAction returns one predicted action per
// episode as the rows of an N x A matrix.
type Model interface {
	BatchAction(states, actions, rewards, returnsToGo *tensor.Dense,
		timesteps []int) (*mat.Dense, error)
}
