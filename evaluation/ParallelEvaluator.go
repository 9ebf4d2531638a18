// Package evaluation implements conditioned rollouts of a predictive
// model against live simulated environments
package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	env "github.com/samuelfneumann/godecision/environment"
	"github.com/samuelfneumann/godecision/model"
)

// ParallelEvaluator runs many simulated episodes in lockstep, feeding
// each one's growing history back into a single predictive model and
// decaying a return-to-go conditioning signal by the realized rewards.
//
// "Parallel" means data-parallel bookkeeping across a fixed set of
// episodes: one model invocation serves every episode on each step,
// while the environments themselves are stepped strictly sequentially
// since no environment supports batched stepping. Execution is
// single-threaded; the evaluator owns its buffers exclusively for the
// duration of one run.
//
// The timestep sequence fed to the model is shared across all parallel
// episodes rather than tracked per episode. Episodes that end early
// keep growing mechanically alongside the others, so their positional
// signal stays aligned with the shared sequence. This is deliberate:
// changing it would change the model's input semantics.
type ParallelEvaluator struct {
	envs []env.Environment
	m    model.Model

	stateDim int
	actDim   int
	maxEpLen int
	scale    float64
	delayed  bool

	stateMean []float64
	stateStd  []float64
}

// NewParallelEvaluator returns an evaluator over the given environment
// instances, one per episode. The state mean and floored standard
// deviation normalize every observation before it reaches the model,
// and scale divides rewards and target returns. If delayed is true the
// return-to-go conditioning signal stays constant instead of decaying
// by realized rewards.
func NewParallelEvaluator(envs []env.Environment, m model.Model,
	stateDim, actDim, maxEpLen int, scale float64, delayed bool,
	stateMean, stateStd []float64) (*ParallelEvaluator, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("newParallelEvaluator: need at least one " +
			"environment instance")
	}
	if maxEpLen < 1 {
		return nil, fmt.Errorf("newParallelEvaluator: maxEpLen must be "+
			"positive, got %v", maxEpLen)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("newParallelEvaluator: scale must be "+
			"positive, got %v", scale)
	}
	if len(stateMean) != stateDim || len(stateStd) != stateDim {
		return nil, fmt.Errorf("newParallelEvaluator: normalization "+
			"statistics must have size %v", stateDim)
	}

	return &ParallelEvaluator{
		envs:      envs,
		m:         m,
		stateDim:  stateDim,
		actDim:    actDim,
		maxEpLen:  maxEpLen,
		scale:     scale,
		delayed:   delayed,
		stateMean: stateMean,
		stateStd:  stateStd,
	}, nil
}

// Run rolls out one episode per environment instance, conditioning the
// model on targetReturn (in raw reward units, before scaling). It
// returns the per-episode returns and lengths aggregated across
// episodes.
//
// An episode's done flag is sticky: once its environment reports a
// terminal step, its accumulated return and length freeze, though its
// buffers keep growing in lockstep with the surviving episodes. The
// loop exits early once every episode is done, and otherwise stops at
// the step cap.
func (p *ParallelEvaluator) Run(targetReturn float64) (Result, error) {
	n := len(p.envs)

	states := make([][]float64, n)
	actions := make([][]float64, n)
	rewards := make([][]float64, n)
	targets := make([][]float64, n)

	done := make([]bool, n)
	episodeReturn := make([]float64, n)
	episodeLength := make([]float64, n)

	for i, e := range p.envs {
		first := e.Reset()
		if first.Observation.Len() != p.stateDim {
			return Result{}, fmt.Errorf("run: environment %v returned "+
				"observation of size %v, expected %v", i,
				first.Observation.Len(), p.stateDim)
		}

		states[i] = make([]float64, 0, (p.maxEpLen+1)*p.stateDim)
		states[i] = appendVec(states[i], first.Observation)

		actions[i] = make([]float64, 0, p.maxEpLen*p.actDim)
		rewards[i] = make([]float64, 0, p.maxEpLen)

		targets[i] = make([]float64, 0, p.maxEpLen+1)
		targets[i] = append(targets[i], targetReturn/p.scale)
	}

	// One growing sequence of absolute step indices, shared by every
	// episode
	timesteps := make([]int, 0, p.maxEpLen+1)
	timesteps = append(timesteps, 1)

	for t := 0; t < p.maxEpLen; t++ {
		// Extend every episode by a placeholder action and reward so
		// the histories already have a slot for the current step
		for i := 0; i < n; i++ {
			actions[i] = append(actions[i], make([]float64, p.actDim)...)
			rewards[i] = append(rewards[i], 0)
		}

		predicted, err := p.m.BatchAction(
			p.stateTensor(states, t+1),
			p.actionTensor(actions, t+1),
			p.scalarTensor(rewards, t+1),
			p.scalarTensor(targets, t+1),
			timesteps,
		)
		if err != nil {
			return Result{}, fmt.Errorf("run: could not predict "+
				"actions: %v", err)
		}

		// Replace the placeholder actions with the predictions
		for i := 0; i < n; i++ {
			copy(actions[i][t*p.actDim:(t+1)*p.actDim],
				predicted.RawRowView(i))
		}

		// Step every environment with its own action. Each result is
		// copied out before anything is merged, so a misbehaving
		// instance cannot corrupt another episode's buffers.
		newObs := make([][]float64, n)
		newRewards := make([]float64, n)
		newDones := make([]bool, n)
		for i, e := range p.envs {
			action := mat.NewVecDense(p.actDim,
				actions[i][t*p.actDim:(t+1)*p.actDim])
			step, last := e.Step(action)

			newObs[i] = appendVec(nil, step.Observation)
			newRewards[i] = step.Reward
			newDones[i] = last
		}

		allDone := true
		for i := 0; i < n; i++ {
			wasDone := done[i]
			done[i] = done[i] || newDones[i] // sticky

			states[i] = append(states[i], newObs[i]...)
			rewards[i][t] = newRewards[i]

			next := targets[i][t]
			if !p.delayed {
				next -= newRewards[i] / p.scale
			}
			targets[i] = append(targets[i], next)

			// Episodes that were already done before this step are
			// frozen; an episode terminating on this step still
			// counts it
			if !wasDone {
				episodeReturn[i] += newRewards[i]
				episodeLength[i]++
			}

			allDone = allDone && done[i]
		}

		timesteps = append(timesteps, t+2)

		if allDone {
			break
		}
	}

	return newResult(targetReturn, episodeReturn, episodeLength), nil
}

// stateTensor assembles the normalized state histories of every
// episode into an (episodes, length, stateDim) tensor
func (p *ParallelEvaluator) stateTensor(states [][]float64,
	length int) *tensor.Dense {
	backing := make([]float64, 0, len(states)*length*p.stateDim)
	for _, s := range states {
		backing = append(backing, s...)
	}
	for i := range backing {
		d := i % p.stateDim
		backing[i] = (backing[i] - p.stateMean[d]) / p.stateStd[d]
	}

	return tensor.New(tensor.WithShape(len(states), length, p.stateDim),
		tensor.WithBacking(backing))
}

// actionTensor assembles the action histories of every episode into an
// (episodes, length, actDim) tensor
func (p *ParallelEvaluator) actionTensor(actions [][]float64,
	length int) *tensor.Dense {
	backing := make([]float64, 0, len(actions)*length*p.actDim)
	for _, a := range actions {
		backing = append(backing, a...)
	}

	return tensor.New(tensor.WithShape(len(actions), length, p.actDim),
		tensor.WithBacking(backing))
}

// scalarTensor assembles per-episode scalar histories into an
// (episodes, length) tensor
func (p *ParallelEvaluator) scalarTensor(values [][]float64,
	length int) *tensor.Dense {
	backing := make([]float64, 0, len(values)*length)
	for _, v := range values {
		backing = append(backing, v[:length]...)
	}

	return tensor.New(tensor.WithShape(len(values), length),
		tensor.WithBacking(backing))
}

// appendVec appends the elements of a vector to a slice of floats
func appendVec(dst []float64, v mat.Vector) []float64 {
	for i := 0; i < v.Len(); i++ {
		dst = append(dst, v.AtVec(i))
	}
	return dst
}
