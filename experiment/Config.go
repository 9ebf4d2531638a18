package experiment

import (
	"fmt"
	"path/filepath"
)

// Modes of reward handling
const (
	// ModeNormal leaves rewards as recorded
	ModeNormal string = "normal"

	// ModeDelayed moves all reward mass to the final step of every
	// trajectory at load time, and keeps the evaluation conditioning
	// target constant instead of decaying it by realized rewards
	ModeDelayed string = "delayed"
)

// Config is the immutable configuration of one experiment. It is
// constructed once at startup and passed by reference to every
// component's constructor; nothing mutates it afterwards.
type Config struct {
	// Environment names the environment family to train and evaluate
	// on, and Dataset names the offline dataset variant recorded on it
	Environment string
	Dataset     string

	// Mode is ModeNormal or ModeDelayed
	Mode string

	// K is the context window length of one training example
	K int

	// PctTraj is the fraction of total dataset timesteps that the
	// highest-return trajectories may fill for training, in (0, 1]
	PctTraj float64

	BatchSize int

	// ModelType selects the predictive model family
	ModelType string

	// LearningRate is forwarded to models that train in-process
	LearningRate float64

	NumEvalEpisodes int
	MaxIters        int
	NumStepsPerIter int

	// Track enables saving per-iteration diagnostics to disk
	Track bool

	Seed uint64

	// DataDir is the directory holding dataset files named
	// <environment>-<dataset>.bin
	DataDir string
}

// DatasetPath returns the path of the dataset file the Config names
func (c Config) DatasetPath() string {
	return filepath.Join(c.DataDir,
		fmt.Sprintf("%v-%v.bin", c.Environment, c.Dataset))
}

// Delayed returns whether the Config selects delayed-reward handling
func (c Config) Delayed() bool {
	return c.Mode == ModeDelayed
}

// Validate returns an error describing the first invalid field of the
// Config, if any
func (c Config) Validate() error {
	if c.Mode != ModeNormal && c.Mode != ModeDelayed {
		return fmt.Errorf("validate: unknown mode %v", c.Mode)
	}
	if c.K < 1 {
		return fmt.Errorf("validate: window length K must be positive, "+
			"got %v", c.K)
	}
	if c.PctTraj <= 0 || c.PctTraj > 1 {
		return fmt.Errorf("validate: pctTraj must be in (0, 1], got %v",
			c.PctTraj)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive, got %v",
			c.BatchSize)
	}
	if c.NumEvalEpisodes < 1 {
		return fmt.Errorf("validate: need at least one evaluation "+
			"episode, got %v", c.NumEvalEpisodes)
	}
	if c.MaxIters < 1 || c.NumStepsPerIter < 1 {
		return fmt.Errorf("validate: iteration counts must be positive, "+
			"got %v iterations of %v steps", c.MaxIters, c.NumStepsPerIter)
	}
	return nil
}
