package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-rpsn/domain"
	"loan-rpsn/solver"
)

type MockCache struct {
	Data       map[string]string
	GetCalls   int
	SetCalls   int
	ForceError bool
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string]string)}
}

func (m *MockCache) Get(_ context.Context, key string) (string, bool) {
	m.GetCalls++
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	m.SetCalls++
	if m.ForceError {
		return errors.New("cache unavailable")
	}
	m.Data[key] = value
	return nil
}

var july5th2016 = civil.Date{Year: 2016, Month: time.July, Day: 5}

func consumerLoan() domain.Loan {
	return domain.Loan{LoanTerms: domain.LoanTerms{
		Amount:         120_000,
		InterestRate:   domain.Float(0.125),
		Term:           60,
		AcceptanceDate: july5th2016,
		DueDay:         5,
	}}
}

func TestCalculate_ConsumerLoan(t *testing.T) {
	svc := NewLoanService(NewMockCache())

	result, err := svc.Calculate(context.Background(), consumerLoan())
	require.NoError(t, err)

	assert.Equal(t, 2700.0, result.Installment)
	assert.Equal(t, 162_000.0, result.SumPaid)
	require.NotNil(t, result.LoanCost)
	assert.Equal(t, 42_000.0, *result.LoanCost)
	require.NotNil(t, result.Rpsn)
	assert.Equal(t, 13.24, *result.Rpsn)
	assert.Equal(t, 60, result.Term)
}

func TestCalculate_SevenYearLoan(t *testing.T) {
	svc := NewLoanService(nil)
	loan := domain.Loan{LoanTerms: domain.LoanTerms{
		Amount:         250_000,
		InterestRate:   domain.Float(0.139),
		Term:           84,
		AcceptanceDate: civil.Date{Year: 2016, Month: time.March, Day: 1},
		DueDay:         9,
	}}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)

	assert.Equal(t, 4671.0, result.Installment)
	assert.Equal(t, 392_364.0, result.SumPaid)
	assert.Equal(t, 142_364.0, *result.LoanCost)
	require.NotNil(t, result.Rpsn)
	assert.Greater(t, *result.Rpsn, 13.9)
}

func TestCalculate_WithoutScheduleSkipsRpsn(t *testing.T) {
	svc := NewLoanService(nil)
	loan := domain.Loan{LoanTerms: domain.LoanTerms{Amount: 120_000, InterestRate: domain.Float(0.125), Term: 60}}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 42_000.0, *result.LoanCost)
	assert.Nil(t, result.Rpsn)
}

func TestCalculate_RecoversTermFromInstallment(t *testing.T) {
	svc := NewLoanService(nil)
	loan := domain.Loan{
		LoanTerms:   domain.LoanTerms{Amount: 120_000, InterestRate: domain.Float(0.125)},
		Installment: 2700,
	}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 60, result.Term)
	assert.Equal(t, 162_000.0, result.SumPaid)
}

func TestCalculate_KeepsExtrasAndInput(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()
	loan.Extra = map[string]json.RawMessage{"branch": json.RawMessage(`"Brno"`)}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)

	assert.JSONEq(t, `"Brno"`, string(result.Extra["branch"]))
	assert.Zero(t, loan.Installment, "input record must not change")
	assert.Nil(t, loan.Rpsn, "input record must not change")

	result.Extra["other"] = json.RawMessage(`1`)
	assert.Len(t, loan.Extra, 1)
}

func TestCalculate_ZeroInterestKeepsZeroFields(t *testing.T) {
	svc := NewLoanService(nil)
	loan := domain.Loan{LoanTerms: domain.LoanTerms{
		Amount:         1200,
		InterestRate:   domain.Float(0),
		Term:           12,
		AcceptanceDate: july5th2016,
		DueDay:         5,
	}}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Installment)
	assert.Equal(t, 1200.0, result.SumPaid)

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"amount": 1200,
		"interestRate": 0,
		"term": 12,
		"acceptanceDate": "2016-07-05",
		"dueDay": 5,
		"installment": 100,
		"sumPaid": 1200,
		"loanCost": 0,
		"rpsn": 0
	}`, string(out))
}

func TestCalculate_KeepsCallerFields(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()
	loan.Installment = 2700
	loan.SumPaid = 161_999
	loan.LoanCost = domain.Float(41_999)
	loan.Rpsn = domain.Float(13)

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 161_999.0, result.SumPaid)
	assert.Equal(t, 41_999.0, *result.LoanCost)
	assert.Equal(t, 13.0, *result.Rpsn)

	*result.Rpsn = 1
	assert.Equal(t, 13.0, *loan.Rpsn, "result must not alias the input")

	loan.LoanCost, loan.Rpsn = nil, nil
	result, err = svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 161_999.0, result.SumPaid)
	assert.Equal(t, 41_999.0, *result.LoanCost, "cost follows the sum paid given")
	assert.Equal(t, 13.24, *result.Rpsn)
}

func TestCalculate_MissingInputs(t *testing.T) {
	svc := NewLoanService(nil)

	_, err := svc.Calculate(context.Background(), domain.Loan{LoanTerms: domain.LoanTerms{Amount: 1000}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Calculate(context.Background(), domain.Loan{LoanTerms: domain.LoanTerms{Term: 12, InterestRate: domain.Float(0.1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Calculate(context.Background(), domain.Loan{LoanTerms: domain.LoanTerms{Amount: 1000, Term: 12}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "a missing rate is not a zero rate")
}

func TestCalculate_Limits(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()
	loan.Amount = MaxLoanAmount * 2

	_, err := svc.Calculate(context.Background(), loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	loan = consumerLoan()
	loan.Term = MaxTerm + 1
	_, err = svc.Calculate(context.Background(), loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStages_RequireEarlierFields(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()

	_, err := svc.WithSumPaid(loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.WithLoanCost(loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.WithRpsn(context.Background(), loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	withInstallment, err := svc.WithInstallment(loan)
	require.NoError(t, err)
	noDate := withInstallment
	noDate.AcceptanceDate = civil.Date{}
	_, err = svc.WithRpsn(context.Background(), noDate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWithRpsn_CostsRaiseRate(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()
	loan.Installment = 2700

	plain, err := svc.WithRpsn(context.Background(), loan)
	require.NoError(t, err)

	loan.Costs = 50
	withCosts, err := svc.WithRpsn(context.Background(), loan)
	require.NoError(t, err)

	assert.Greater(t, *withCosts.Rpsn, *plain.Rpsn)
}

func TestWithRpsn_LinearSearch(t *testing.T) {
	svc := NewLoanService(nil, WithStrategy(solver.StrategyLinearSearch))
	assert.Equal(t, solver.StrategyLinearSearch, svc.Strategy())

	loan := domain.Loan{LoanTerms: domain.LoanTerms{Amount: 120_000, InterestRate: domain.Float(0.125), Term: 60}}
	result, err := svc.WithRpsn(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 12.5, *result.Rpsn)

	loan.Costs = 1000
	result, err = svc.WithRpsn(context.Background(), loan)
	require.NoError(t, err)
	assert.Greater(t, *result.Rpsn, 12.5)

	loan.InterestRate = nil
	_, err = svc.WithRpsn(context.Background(), loan)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCalculate_LinearSearchNeedsNoDates(t *testing.T) {
	svc := NewLoanService(nil, WithStrategy(solver.StrategyLinearSearch))
	loan := domain.Loan{LoanTerms: domain.LoanTerms{Amount: 120_000, InterestRate: domain.Float(0.125), Term: 60}}

	result, err := svc.Calculate(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, 12.5, *result.Rpsn)
}

func TestGetRpsn_UsesCache(t *testing.T) {
	cache := NewMockCache()
	svc := NewLoanService(cache)
	ctx := context.Background()

	first, err := svc.GetRpsn(ctx, 120_000, 60, 2700, july5th2016, 5)
	require.NoError(t, err)
	assert.Equal(t, 13.24, first)
	assert.Equal(t, 1, cache.SetCalls)

	second, err := svc.GetRpsn(ctx, 120_000, 60, 2700, july5th2016, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.GetCalls)
	assert.Equal(t, 1, cache.SetCalls, "second call should be served from cache")
}

func TestGetRpsn_CacheFailureDoesNotFail(t *testing.T) {
	cache := NewMockCache()
	cache.ForceError = true
	svc := NewLoanService(cache)

	rpsn, err := svc.GetRpsn(context.Background(), 120_000, 60, 2700, july5th2016, 5)
	require.NoError(t, err)
	assert.Equal(t, 13.24, rpsn)
}

func TestGetRpsn_IgnoresUnreadableCacheEntry(t *testing.T) {
	cache := NewMockCache()
	svc := NewLoanService(cache)
	ctx := context.Background()

	want, err := svc.GetRpsn(ctx, 120_000, 60, 2700, july5th2016, 5)
	require.NoError(t, err)
	for key := range cache.Data {
		cache.Data[key] = "not-a-number"
	}

	got, err := svc.GetRpsn(ctx, 120_000, 60, 2700, july5th2016, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetRpsn_InvalidInput(t *testing.T) {
	svc := NewLoanService(nil)
	ctx := context.Background()

	_, err := svc.GetRpsn(ctx, 0, 60, 2700, july5th2016, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetRpsn(ctx, 120_000, 0, 2700, july5th2016, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetRpsn(ctx, 120_000, 60, 0, july5th2016, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetRpsn(ctx, 120_000, 60, 2700, july5th2016, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPositionalFormulas(t *testing.T) {
	svc := NewLoanService(nil)

	installment, err := svc.GetInstallment(120_000, 0.125, 60)
	require.NoError(t, err)
	assert.Equal(t, 2700.0, installment)

	sumPaid, err := svc.GetSumPaid(installment, 60)
	require.NoError(t, err)
	assert.Equal(t, 162_000.0, sumPaid)

	onSchedule, err := svc.GetSumPaidOnSchedule(60, installment, july5th2016, 5)
	require.NoError(t, err)
	assert.Equal(t, sumPaid, onSchedule)

	cost, err := svc.GetLoanCost(120_000, sumPaid)
	require.NoError(t, err)
	assert.Equal(t, 42_000.0, cost)

	term, err := svc.GetInstallmentCount(120_000, installment, 0.125)
	require.NoError(t, err)
	assert.Equal(t, 60, term)

	term, err = svc.GetInstallmentCount(1000, 300, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, term)
}

func TestSchedule(t *testing.T) {
	svc := NewLoanService(nil)

	s, err := svc.Schedule(consumerLoan())
	require.NoError(t, err)
	require.Len(t, s, 60)
	assert.Equal(t, civil.Date{Year: 2016, Month: time.August, Day: 5}, s[0].DueDate)
	assert.Equal(t, civil.Date{Year: 2021, Month: time.July, Day: 5}, s[59].DueDate)
}

func TestCacheKey_DependsOnInputs(t *testing.T) {
	svc := NewLoanService(nil)
	loan := consumerLoan()
	flowsA, err := svc.Schedule(loan)
	require.NoError(t, err)

	a := cacheKey(solver.StrategyBisection, flowsA.CashFlows(2700), 120_000, 0)
	b := cacheKey(solver.StrategyBisection, flowsA.CashFlows(2701), 120_000, 0)
	c := cacheKey(solver.StrategyLinearSearch, flowsA.CashFlows(2700), 120_000, 0)

	assert.Equal(t, a, cacheKey(solver.StrategyBisection, flowsA.CashFlows(2700), 120_000, 0))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, cacheKeyPrefix)
}
