// Package calc holds the closed-form loan formulas: installment, sum paid,
// loan cost and the inverse annuity used to recover the number of
// installments.
package calc

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"loan-rpsn/domain"
)

const monthsPerYear = 12

// AnnuityFactor returns the payment per unit of principal of a level-payment
// loan with the given periodic rate and number of periods.
//
//	rate * (1+rate)^n / ((1+rate)^n - 1)
//
// A zero rate degenerates to 1/n.
func AnnuityFactor(rate float64, periods int) float64 {
	n := float64(periods)
	if rate == 0 {
		return 1 / n
	}
	growth := math.Pow(1+rate, n)
	return rate * growth / (growth - 1)
}

// InstallmentExact is the unrounded monthly installment of an amortizing loan.
func InstallmentExact(amount, interestRate float64, term int) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: loan amount must be defined", domain.ErrInvalidInput)
	}
	if interestRate < 0 {
		return 0, fmt.Errorf("%w: interest rate must not be negative", domain.ErrInvalidInput)
	}
	if term <= 0 {
		return 0, fmt.Errorf("%w: term must be defined", domain.ErrInvalidInput)
	}
	monthlyRate := interestRate / monthsPerYear
	if monthlyRate == 0 {
		return amount / float64(term), nil
	}
	return amount * (monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(term)))), nil
}

// Installment is InstallmentExact rounded to a whole currency unit.
func Installment(amount, interestRate float64, term int) (float64, error) {
	exact, err := InstallmentExact(amount, interestRate, term)
	if err != nil {
		return 0, err
	}
	return math.Round(exact), nil
}

// SumPaid is the total of all installments.
func SumPaid(installment float64, term int) (float64, error) {
	if installment <= 0 || term <= 0 {
		return 0, fmt.Errorf("%w: installment amount and term must be defined", domain.ErrInvalidInput)
	}
	return decimal.NewFromFloat(installment).
		Mul(decimal.NewFromInt(int64(term))).
		InexactFloat64(), nil
}

// LoanCost is the amount overpaid on top of the principal.
func LoanCost(amount, sumPaid float64) (float64, error) {
	if amount <= 0 || sumPaid <= 0 {
		return 0, fmt.Errorf("%w: loan amount and sum paid must be defined", domain.ErrInvalidInput)
	}
	return decimal.NewFromFloat(sumPaid).
		Sub(decimal.NewFromFloat(amount)).
		InexactFloat64(), nil
}

// InstallmentCount recovers the number of monthly installments needed to
// repay amount with the given installment. Whole years are estimated first;
// the balance left for the final partial year is amortized month by month.
func InstallmentCount(amount, installment, interestRate float64) (int, error) {
	if amount <= 0 || installment <= 0 {
		return 0, fmt.Errorf("%w: loan amount and installment amount are required", domain.ErrInvalidInput)
	}
	if interestRate < 0 {
		return 0, fmt.Errorf("%w: interest rate must not be negative", domain.ErrInvalidInput)
	}
	if interestRate == 0 {
		return int(math.Ceil(amount / installment)), nil
	}

	monthlyRate := interestRate / monthsPerYear
	if installment <= amount*monthlyRate {
		return 0, fmt.Errorf("%w: installment %.2f never repays the interest", domain.ErrInvalidInput, installment)
	}

	years := int(math.Ceil(Round(monthsToRepay(amount, installment, monthlyRate)/monthsPerYear, 4)))
	if years <= 0 {
		return 0, nil
	}

	if Round(presentValue(installment, monthlyRate, years*monthsPerYear), 2) <= amount {
		return years * monthsPerYear, nil
	}

	fullMonths := (years - 1) * monthsPerYear
	balance := remainingBalance(amount, installment, monthlyRate, fullMonths)
	if balance <= 0 {
		return fullMonths, nil
	}
	return fullMonths + int(math.Ceil(Round(monthsToRepay(balance, installment, monthlyRate), 4))), nil
}

// monthsToRepay is the inverse annuity: the fractional number of payments
// that amortize balance at the periodic rate.
func monthsToRepay(balance, payment, rate float64) float64 {
	return -math.Log(1-rate*balance/payment) / math.Log(1+rate)
}

// presentValue of periods level payments discounted at the periodic rate.
func presentValue(payment, rate float64, periods int) float64 {
	return payment * (1 - math.Pow(1+rate, -float64(periods))) / rate
}

// remainingBalance left on the loan after the given number of payments.
func remainingBalance(amount, payment, rate float64, periods int) float64 {
	growth := math.Pow(1+rate, float64(periods))
	return amount*growth - payment*(growth-1)/rate
}

// Round rounds value half away from zero to the given number of decimals.
func Round(value float64, places int32) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

// Percent converts a rate fraction to a percentage with two decimals.
func Percent(rate float64) float64 {
	return Round(rate*100, 2)
}
