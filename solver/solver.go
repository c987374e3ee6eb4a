// Package solver finds the annual percentage rate that discounts a loan's
// cash flows back to the borrowed amount.
package solver

import (
	"fmt"

	"loan-rpsn/domain"
	"loan-rpsn/schedule"
)

// MaxIterations bounds every solver loop.
const MaxIterations = 100

// Strategy names a solver implementation.
type Strategy string

const (
	// StrategyBisection bisects the annual rate against date-accurate
	// discounting. It is the default.
	StrategyBisection Strategy = "bisection"
	// StrategyLinearSearch searches the monthly flat rate with the annuity
	// formula, treating every month as equally long.
	StrategyLinearSearch Strategy = "linear"
)

// KnownStrategies lists the accepted strategy names.
var KnownStrategies = []Strategy{StrategyBisection, StrategyLinearSearch}

// Solution is the result of a solve. A solver that runs out of iterations
// still returns its best rate, with Converged unset.
type Solution struct {
	Rate       float64 // annual, as a fraction
	Iterations int
	Converged  bool
}

// RateSolver finds the rate at which the present value of flows equals
// amount.
type RateSolver interface {
	Strategy() Strategy
	Solve(flows schedule.CashFlows, amount float64) Solution
	// PresentValue is the model the solver inverts. It decreases strictly
	// as annualRate grows.
	PresentValue(flows schedule.CashFlows, annualRate float64) float64
}

// New returns the solver for strategy. nominalRate is the loan's annual
// interest rate; only the linear search uses it, as its starting point.
func New(strategy Strategy, nominalRate float64) (RateSolver, error) {
	switch strategy {
	case StrategyBisection, "":
		return Bisection{}, nil
	case StrategyLinearSearch:
		return LinearSearch{MonthlyRate: nominalRate / 12}, nil
	}
	return nil, fmt.Errorf("%w: unknown solver strategy %q", domain.ErrInvalidInput, strategy)
}

// IsKnown reports whether strategy names a solver.
func IsKnown(strategy Strategy) bool {
	for _, s := range KnownStrategies {
		if s == strategy {
			return true
		}
	}
	return false
}
