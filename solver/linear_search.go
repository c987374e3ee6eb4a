package solver

import (
	"math"

	"loan-rpsn/calc"
	"loan-rpsn/schedule"
)

const (
	// LinearSearchTolerance bounds the annuity factor mismatch.
	LinearSearchTolerance = 1e-7

	fallbackMonthlyRate = 0.01
)

var _ RateSolver = LinearSearch{}

// LinearSearch looks for the monthly rate whose annuity factor matches
// payment/amount, moving by a step that halves every iteration. Months are
// treated as equal, so the dates in the flows are ignored and the result is
// the monthly rate times twelve.
type LinearSearch struct {
	// MonthlyRate is the starting rate and the first step.
	MonthlyRate float64
}

func (LinearSearch) Strategy() Strategy { return StrategyLinearSearch }

func (s LinearSearch) Solve(flows schedule.CashFlows, amount float64) Solution {
	if len(flows) == 0 || amount <= 0 {
		return Solution{}
	}
	term := len(flows)
	target := flows[0].Payment / amount

	rate := s.MonthlyRate
	if rate <= 0 {
		rate = fallbackMonthlyRate
	}
	step := rate

	sol := Solution{}
	for sol.Iterations < MaxIterations {
		sol.Iterations++
		diff := calc.AnnuityFactor(rate, term) - target
		if math.Abs(diff) < LinearSearchTolerance {
			sol.Converged = true
			break
		}
		if diff < 0 {
			rate += step
		} else {
			rate -= step
		}
		step /= 2
	}
	sol.Rate = rate * 12
	return sol
}

func (LinearSearch) PresentValue(flows schedule.CashFlows, annualRate float64) float64 {
	if len(flows) == 0 {
		return 0
	}
	return flows[0].Payment / calc.AnnuityFactor(annualRate/12, len(flows))
}
