package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/godecision/environment/envconfig"
	"github.com/samuelfneumann/godecision/experiment"
	"github.com/samuelfneumann/godecision/experiment/trackers"
	"github.com/samuelfneumann/godecision/model"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCommand defines the command line argument parser. All arguments
// are collected into one immutable experiment.Config before anything
// is constructed.
func rootCommand() *cobra.Command {
	var conf experiment.Config
	var resultsFile string

	cmd := &cobra.Command{
		Use:   "godecision",
		Short: "Train and evaluate return-conditioned models on offline trajectories",
		Run: func(cmd *cobra.Command, args []string) {
			run(conf, resultsFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&conf.Environment, "env", "cartpole",
		"environment family to train and evaluate on")
	flags.StringVar(&conf.Dataset, "dataset", "medium",
		"offline dataset variant")
	flags.StringVar(&conf.Mode, "mode", experiment.ModeNormal,
		"normal for the standard setting, delayed for sparse rewards")
	flags.IntVar(&conf.K, "K", 20, "context window length")
	flags.Float64Var(&conf.PctTraj, "pct-traj", 1.0,
		"fraction of dataset timesteps to train on, by return ranking")
	flags.IntVar(&conf.BatchSize, "batch-size", 64, "training batch size")
	flags.StringVar(&conf.ModelType, "model-type", "bc",
		"predictive model family")
	flags.Float64Var(&conf.LearningRate, "learning-rate", 1e-4,
		"learning rate for in-process model updates")
	flags.IntVar(&conf.NumEvalEpisodes, "num-eval-episodes", 100,
		"episodes to run in parallel per evaluation")
	flags.IntVar(&conf.MaxIters, "max-iters", 10,
		"training iterations to run")
	flags.IntVar(&conf.NumStepsPerIter, "num-steps-per-iter", 10000,
		"training steps per iteration")
	flags.BoolVar(&conf.Track, "track", false,
		"save per-iteration diagnostics to disk")
	flags.StringVar(&resultsFile, "results-file", "results.bin",
		"file that tracked diagnostics are saved to")
	flags.Uint64Var(&conf.Seed, "seed", 192382, "random seed")
	flags.StringVar(&conf.DataDir, "data-dir", "data",
		"directory holding dataset files")

	return cmd
}

func run(conf experiment.Config, resultsFile string) {
	envConf := envconfig.For(envconfig.EnvName(conf.Environment))

	// The sequence model trains out of process; only the
	// simple-regression baseline is constructed here
	var m *model.Regression
	switch conf.ModelType {
	case "bc":
		m = model.NewRegression(envConf.StateDim, envConf.ActDim,
			conf.LearningRate)
	default:
		panic(fmt.Sprintf("run: model type %v not implemented",
			conf.ModelType))
	}

	var trs []trackers.Tracker
	if conf.Track {
		trs = append(trs, trackers.NewResults(resultsFile))
	}

	e, err := experiment.New(conf, m, m, trs...)
	if err != nil {
		log.Fatalf("could not create experiment: %v", err)
	}

	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	e.Save()
}
