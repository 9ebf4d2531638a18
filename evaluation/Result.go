package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Result aggregates the outcome of one evaluation run, keyed by the
// target return the run conditioned on
type Result struct {
	TargetReturn float64

	ReturnMean float64
	ReturnStd  float64
	LengthMean float64
	LengthStd  float64
}

func newResult(targetReturn float64, returns, lengths []float64) Result {
	return Result{
		TargetReturn: targetReturn,
		ReturnMean:   stat.Mean(returns, nil),
		ReturnStd:    stat.PopStdDev(returns, nil),
		LengthMean:   stat.Mean(lengths, nil),
		LengthStd:    stat.PopStdDev(lengths, nil),
	}
}

// Scalars returns the result as named scalars, keyed by the target
// return value used for the run
func (r Result) Scalars() map[string]float64 {
	prefix := fmt.Sprintf("target_%v", r.TargetReturn)

	return map[string]float64{
		prefix + "_return_mean": r.ReturnMean,
		prefix + "_return_std":  r.ReturnStd,
		prefix + "_length_mean": r.LengthMean,
		prefix + "_length_std":  r.LengthStd,
	}
}

func (r Result) String() string {
	return fmt.Sprintf("target %v  |  return: %.2f ± %.2f  |  "+
		"length: %.2f ± %.2f", r.TargetReturn, r.ReturnMean, r.ReturnStd,
		r.LengthMean, r.LengthStd)
}
