// Package experiment implements functionality for running an experiment
// that trains a return-conditioned model on offline trajectories and
// periodically evaluates it against live environments.
package experiment

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/godecision/environment/envconfig"
	"github.com/samuelfneumann/godecision/evaluation"
	"github.com/samuelfneumann/godecision/experiment/trackers"
	"github.com/samuelfneumann/godecision/model"
	"github.com/samuelfneumann/godecision/trajectory"
	"github.com/samuelfneumann/godecision/utils/progressbar"
)

// Trainer consumes training batches and updates a model from them.
// How the weights are updated, and on what schedule, is the Trainer's
// own concern.
type Trainer interface {
	// TrainStep performs a single update from one batch and returns
	// the training loss
	TrainStep(*trajectory.Batch) (float64, error)
}

// Experiment wires a trajectory store, batch sampler, and parallel
// evaluator around one model and one trainer. Each iteration trains
// for a fixed number of steps and then evaluates the model once per
// conditioning target, sending the merged diagnostics to every
// registered Tracker.
type Experiment struct {
	conf    Config
	envConf envconfig.Config

	store     *trajectory.Store
	sampler   *trajectory.BatchSampler
	evaluator *evaluation.ParallelEvaluator

	trainer  Trainer
	trackers []trackers.Tracker
}

// New creates an Experiment from an immutable Config, a model, and a
// trainer. The dataset file the Config names is loaded eagerly; a
// missing or malformed file fails construction immediately.
func New(conf Config, m model.Model, t Trainer,
	trs ...trackers.Tracker) (*Experiment, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid configuration: %v", err)
	}

	// Panics if the environment name is not implemented
	envConf := envconfig.For(envconfig.EnvName(conf.Environment))

	store, err := trajectory.LoadStore(conf.DatasetPath(), conf.Delayed())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Starting new experiment: %v %v\n", conf.Environment,
		conf.Dataset)
	fmt.Println(store)
	fmt.Println(strings.Repeat("=", 50))

	selection, err := trajectory.Select(store, conf.PctTraj)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	sampler, err := trajectory.NewBatchSampler(store, selection,
		envConf.Scale, conf.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	envs := envConf.CreateEnvs(conf.NumEvalEpisodes, conf.Seed)
	evaluator, err := evaluation.NewParallelEvaluator(envs, m,
		envConf.StateDim, envConf.ActDim, envConf.MaxEpisodeLength,
		envConf.Scale, conf.Delayed(), store.StateMean(), store.StateStd())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Experiment{
		conf:      conf,
		envConf:   envConf,
		store:     store,
		sampler:   sampler,
		evaluator: evaluator,
		trainer:   t,
		trackers:  trs,
	}, nil
}

// Register registers a Tracker with the (possibly already running)
// Experiment so that diagnostics generated by later iterations are
// tracked by it
func (e *Experiment) Register(t trackers.Tracker) {
	e.trackers = append(e.trackers, t)
}

// Run runs all training iterations, evaluating after each one
func (e *Experiment) Run() error {
	for iter := 1; iter <= e.conf.MaxIters; iter++ {
		diagnostics, err := e.trainIteration()
		if err != nil {
			return fmt.Errorf("run: iteration %v: %v", iter, err)
		}

		for _, target := range e.envConf.EvalTargets {
			result, err := e.evaluator.Run(target)
			if err != nil {
				return fmt.Errorf("run: iteration %v: %v", iter, err)
			}
			for key, value := range result.Scalars() {
				diagnostics["evaluation/"+key] = value
			}
		}

		e.logIteration(iter, diagnostics)

		for _, tracker := range e.trackers {
			tracker.Track(iter, diagnostics)
		}
	}
	return nil
}

// Save saves all the data cached by the registered Trackers to disk
func (e *Experiment) Save() {
	for _, tracker := range e.trackers {
		tracker.Save()
	}
}

// trainIteration trains for one iteration's worth of steps and returns
// the training diagnostics
func (e *Experiment) trainIteration() (map[string]float64, error) {
	bar := progressbar.New(50, e.conf.NumStepsPerIter)

	losses := make([]float64, e.conf.NumStepsPerIter)
	for step := range losses {
		batch, err := e.sampler.Sample(e.conf.BatchSize, e.conf.K)
		if err != nil {
			return nil, fmt.Errorf("trainIteration: %v", err)
		}

		loss, err := e.trainer.TrainStep(batch)
		if err != nil {
			return nil, fmt.Errorf("trainIteration: %v", err)
		}
		losses[step] = loss

		bar.Increment()
		bar.Display()
	}
	bar.Close()

	return map[string]float64{
		"training/loss_mean": stat.Mean(losses, nil),
		"training/loss_std":  stat.PopStdDev(losses, nil),
	}, nil
}

// logIteration prints one iteration's diagnostics in sorted key order
func (e *Experiment) logIteration(iter int, scalars map[string]float64) {
	keys := make([]string, 0, len(scalars))
	for key := range scalars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Iteration %v\n", iter)
	for _, key := range keys {
		fmt.Printf("%v: %v\n", key, scalars[key])
	}
}
