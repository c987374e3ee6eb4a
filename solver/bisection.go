package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"loan-rpsn/schedule"
)

const (
	// DefaultTolerance is the absolute resolution of the bisected rate.
	DefaultTolerance = 1e-8

	searchLow  = 0.0
	searchHigh = 10.0 // 1000% a year
)

var _ RateSolver = Bisection{}

// Bisection discounts every payment by its exact distance in years from
// acceptance and bisects the annual rate over [0, 10].
type Bisection struct {
	// Tolerance overrides DefaultTolerance when positive.
	Tolerance float64
}

func (Bisection) Strategy() Strategy { return StrategyBisection }

func (b Bisection) Solve(flows schedule.CashFlows, amount float64) Solution {
	tol := b.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	below := func(rate float64) bool {
		return DiscountedTotal(flows, rate) < amount
	}
	return Bisect(below, searchLow, searchHigh, tol)
}

func (Bisection) PresentValue(flows schedule.CashFlows, annualRate float64) float64 {
	return DiscountedTotal(flows, annualRate)
}

// DiscountedTotal is the sum of payment * (1+rate)^-fraction over flows.
func DiscountedTotal(flows schedule.CashFlows, rate float64) float64 {
	contributions := make([]float64, len(flows))
	for i, f := range flows {
		contributions[i] = f.Payment * math.Pow(1+rate, -f.Fraction)
	}
	return floats.Sum(contributions)
}

// Bisect narrows [lo, hi) to the point where a monotone predicate turns
// true and returns the lower bound once the interval is within tol. It stops
// after MaxIterations halvings regardless.
func Bisect(pred func(float64) bool, lo, hi, tol float64) Solution {
	iterations := 0
	for hi-lo > tol && iterations < MaxIterations {
		iterations++
		mid := (hi + lo) / 2
		if pred(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return Solution{Rate: lo, Iterations: iterations, Converged: hi-lo <= tol}
}
