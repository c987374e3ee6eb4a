package schedule

import (
	"fmt"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/floats"

	"loan-rpsn/domain"
)

// DaysPerYear averages leap years into the year fraction.
const DaysPerYear = 365.25

const (
	minDueDay = 1
	maxDueDay = 31
)

// Entry is one installment of the schedule.
type Entry struct {
	Index              int        `json:"index"`
	DueDate            civil.Date `json:"dueDate"`
	DaysFromAcceptance int        `json:"daysFromAcceptance"`
}

// Schedule lists installments in due-date order.
type Schedule []Entry

// Build lays out term installments starting one month after acceptance.
// The acceptance date itself is not part of the schedule.
func Build(term int, acceptance civil.Date, dueDay int) (Schedule, error) {
	if term < 1 {
		return nil, fmt.Errorf("%w: term must be at least 1", domain.ErrInvalidInput)
	}
	if !acceptance.IsValid() {
		return nil, fmt.Errorf("%w: acceptance date must be defined", domain.ErrInvalidInput)
	}
	if dueDay < minDueDay || dueDay > maxDueDay {
		return nil, fmt.Errorf("%w: due day %d outside %d-%d", domain.ErrInvalidInput, dueDay, minDueDay, maxDueDay)
	}

	entries := make(Schedule, 0, term)
	due := acceptance
	for i := 1; i <= term; i++ {
		due = NextDueDate(due, dueDay)
		entries = append(entries, Entry{
			Index:              i,
			DueDate:            due,
			DaysFromAcceptance: DayDifference(acceptance, due),
		})
	}
	return entries, nil
}

// CashFlow is a payment and its distance from acceptance in years.
type CashFlow struct {
	Payment  float64
	Fraction float64
}

// CashFlows are independent of any rate, so one projection serves every
// candidate rate of a solve.
type CashFlows []CashFlow

// CashFlows attaches the same payment to every installment of the schedule.
func (s Schedule) CashFlows(payment float64) CashFlows {
	flows := make(CashFlows, len(s))
	for i, e := range s {
		flows[i] = CashFlow{
			Payment:  payment,
			Fraction: float64(e.DaysFromAcceptance) / DaysPerYear,
		}
	}
	return flows
}

// Project builds the date-accurate cash flows of a level-payment loan.
func Project(term int, payment float64, acceptance civil.Date, dueDay int) (CashFlows, error) {
	if payment <= 0 {
		return nil, fmt.Errorf("%w: payment must be defined", domain.ErrInvalidInput)
	}
	s, err := Build(term, acceptance, dueDay)
	if err != nil {
		return nil, err
	}
	return s.CashFlows(payment), nil
}

// Flat builds cash flows for equal-length months, installment k falling k/12
// years after acceptance.
func Flat(term int, payment float64) (CashFlows, error) {
	if term < 1 {
		return nil, fmt.Errorf("%w: term must be at least 1", domain.ErrInvalidInput)
	}
	if payment <= 0 {
		return nil, fmt.Errorf("%w: payment must be defined", domain.ErrInvalidInput)
	}
	flows := make(CashFlows, term)
	for i := range flows {
		flows[i] = CashFlow{Payment: payment, Fraction: float64(i+1) / 12}
	}
	return flows, nil
}

// Payments returns the payment amounts in order.
func (c CashFlows) Payments() []float64 {
	payments := make([]float64, len(c))
	for i, f := range c {
		payments[i] = f.Payment
	}
	return payments
}

// Total is the undiscounted sum of all payments.
func (c CashFlows) Total() float64 {
	return floats.Sum(c.Payments())
}
