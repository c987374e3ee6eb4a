package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cespare/xxhash/v2"

	"loan-rpsn/calc"
	"loan-rpsn/domain"
	"loan-rpsn/observability"
	"loan-rpsn/repository"
	"loan-rpsn/schedule"
	"loan-rpsn/solver"
)

var errMissingRate = fmt.Errorf("%w: interest rate must be defined", domain.ErrInvalidInput)

type LoanService struct {
	cache    repository.CacheRepository
	cacheTTL time.Duration
	strategy solver.Strategy
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type Option func(*LoanService)

// WithStrategy selects the RPSN solver used by the record stages.
func WithStrategy(strategy solver.Strategy) Option {
	return func(s *LoanService) { s.strategy = strategy }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *LoanService) { s.cacheTTL = ttl }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *LoanService) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *LoanService) { s.logger = logger }
}

// NewLoanService creates a LoanService. cache may be nil, in which case
// every RPSN is solved afresh.
func NewLoanService(cache repository.CacheRepository, opts ...Option) *LoanService {
	s := &LoanService{
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
		strategy: solver.StrategyBisection,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy reports the solver the record stages use.
func (s *LoanService) Strategy() solver.Strategy {
	return s.strategy
}

// GetInstallment returns the rounded monthly installment.
func (s *LoanService) GetInstallment(amount, interestRate float64, term int) (float64, error) {
	if err := validateLimits(amount, interestRate, term); err != nil {
		return 0, err
	}
	return calc.Installment(amount, interestRate, term)
}

// GetSumPaid returns installment * term.
func (s *LoanService) GetSumPaid(installment float64, term int) (float64, error) {
	return calc.SumPaid(installment, term)
}

// GetSumPaidOnSchedule totals the installments laid out on their due dates.
// With a level installment it equals GetSumPaid.
func (s *LoanService) GetSumPaidOnSchedule(term int, installment float64, acceptance civil.Date, dueDay int) (float64, error) {
	flows, err := schedule.Project(term, installment, acceptance, dueDay)
	if err != nil {
		return 0, err
	}
	return flows.Total(), nil
}

func (s *LoanService) GetLoanCost(amount, sumPaid float64) (float64, error) {
	return calc.LoanCost(amount, sumPaid)
}

// GetRpsn returns the date-accurate RPSN in percent, bisecting the annual
// rate regardless of the configured strategy.
func (s *LoanService) GetRpsn(ctx context.Context, amount float64, term int, installment float64, acceptance civil.Date, dueDay int) (float64, error) {
	if amount <= 0 || installment <= 0 {
		return 0, fmt.Errorf("%w: loan amount and installment must be defined", domain.ErrInvalidInput)
	}
	if err := validateLimits(amount, 0, term); err != nil {
		return 0, err
	}
	flows, err := schedule.Project(term, installment, acceptance, dueDay)
	if err != nil {
		return 0, err
	}
	return s.solve(ctx, solver.StrategyBisection, flows, amount, 0)
}

// GetInstallmentCount returns the number of installments needed to repay
// amount.
func (s *LoanService) GetInstallmentCount(amount, installment, interestRate float64) (int, error) {
	if err := validateLimits(amount, interestRate, MinTerm); err != nil {
		return 0, err
	}
	return calc.InstallmentCount(amount, installment, interestRate)
}

// WithInstallment adds the installment to the record.
func (s *LoanService) WithInstallment(loan domain.Loan) (domain.Loan, error) {
	if loan.InterestRate == nil {
		return domain.Loan{}, errMissingRate
	}
	installment, err := s.GetInstallment(loan.Amount, *loan.InterestRate, loan.Term)
	if err != nil {
		return domain.Loan{}, err
	}
	out := loan.Clone()
	out.Installment = installment
	return out, nil
}

// WithSumPaid adds the sum of all installments to the record.
func (s *LoanService) WithSumPaid(loan domain.Loan) (domain.Loan, error) {
	sumPaid, err := s.GetSumPaid(loan.Installment, loan.Term)
	if err != nil {
		return domain.Loan{}, err
	}
	out := loan.Clone()
	out.SumPaid = sumPaid
	return out, nil
}

// WithLoanCost adds the loan cost to the record.
func (s *LoanService) WithLoanCost(loan domain.Loan) (domain.Loan, error) {
	cost, err := s.GetLoanCost(loan.Amount, loan.SumPaid)
	if err != nil {
		return domain.Loan{}, err
	}
	out := loan.Clone()
	out.LoanCost = domain.Float(cost)
	return out, nil
}

// WithInstallmentCount adds the term recovered from amount, installment and
// interest rate.
func (s *LoanService) WithInstallmentCount(loan domain.Loan) (domain.Loan, error) {
	if loan.InterestRate == nil {
		return domain.Loan{}, errMissingRate
	}
	term, err := s.GetInstallmentCount(loan.Amount, loan.Installment, *loan.InterestRate)
	if err != nil {
		return domain.Loan{}, err
	}
	out := loan.Clone()
	out.Term = term
	return out, nil
}

// WithRpsn adds the RPSN to the record using the configured strategy.
//
// Bisection discounts installment+costs on the real due dates and needs the
// installment, acceptance date and due day. The linear search works from
// the interest rate alone, folding costs into the financed amount.
func (s *LoanService) WithRpsn(ctx context.Context, loan domain.Loan) (domain.Loan, error) {
	if loan.Amount <= 0 {
		return domain.Loan{}, fmt.Errorf("%w: loan amount must be defined", domain.ErrInvalidInput)
	}
	if loan.Costs < 0 {
		return domain.Loan{}, fmt.Errorf("%w: costs must not be negative", domain.ErrInvalidInput)
	}
	if err := validateLimits(loan.Amount, loan.Rate(), loan.Term); err != nil {
		return domain.Loan{}, err
	}

	var (
		flows schedule.CashFlows
		err   error
	)
	switch s.strategy {
	case solver.StrategyLinearSearch:
		if loan.InterestRate == nil {
			return domain.Loan{}, errMissingRate
		}
		factor := calc.AnnuityFactor(*loan.InterestRate/12, loan.Term)
		flows, err = schedule.Flat(loan.Term, (loan.Amount+loan.Costs)*factor)
	default:
		if loan.Installment <= 0 {
			return domain.Loan{}, fmt.Errorf("%w: installment must be defined", domain.ErrInvalidInput)
		}
		flows, err = schedule.Project(loan.Term, loan.Installment+loan.Costs, loan.AcceptanceDate, loan.DueDay)
	}
	if err != nil {
		return domain.Loan{}, err
	}

	rpsn, err := s.solve(ctx, s.strategy, flows, loan.Amount, loan.Rate())
	if err != nil {
		return domain.Loan{}, err
	}
	out := loan.Clone()
	out.Rpsn = domain.Float(rpsn)
	return out, nil
}

// Calculate runs every stage the record has inputs for. A record with an
// installment but no term gets its term recovered first; the RPSN is added
// when the configured solver can run on what the record holds. Fields the
// caller already filled in are kept as given.
func (s *LoanService) Calculate(ctx context.Context, loan domain.Loan) (domain.Loan, error) {
	loan = loan.Clone()
	var err error
	switch {
	case loan.Term == 0 && loan.Installment > 0:
		if loan, err = s.WithInstallmentCount(loan); err != nil {
			return domain.Loan{}, err
		}
	case loan.Installment == 0:
		if loan, err = s.WithInstallment(loan); err != nil {
			return domain.Loan{}, err
		}
	}

	if loan.SumPaid == 0 {
		if loan, err = s.WithSumPaid(loan); err != nil {
			return domain.Loan{}, err
		}
	}
	if loan.LoanCost == nil {
		if loan, err = s.WithLoanCost(loan); err != nil {
			return domain.Loan{}, err
		}
	}

	if loan.Rpsn == nil && (s.strategy == solver.StrategyLinearSearch || loan.HasSchedule()) {
		if loan, err = s.WithRpsn(ctx, loan); err != nil {
			return domain.Loan{}, err
		}
	}
	return loan, nil
}

// Schedule lays out the installment dates of the record.
func (s *LoanService) Schedule(loan domain.Loan) (schedule.Schedule, error) {
	if err := validateLimits(loan.Amount, loan.Rate(), loan.Term); err != nil {
		return nil, err
	}
	return schedule.Build(loan.Term, loan.AcceptanceDate, loan.DueDay)
}

func (s *LoanService) solve(ctx context.Context, strategy solver.Strategy, flows schedule.CashFlows, amount, nominalRate float64) (float64, error) {
	key := cacheKey(strategy, flows, amount, nominalRate)
	if s.cache != nil {
		cached, ok := s.cache.Get(ctx, key)
		s.metrics.ObserveCache(ok)
		if ok {
			if rpsn, err := strconv.ParseFloat(cached, 64); err == nil {
				return rpsn, nil
			}
			s.logger.Warn("discarding unreadable cached rpsn", "key", key, "value", cached)
		}
	}

	rateSolver, err := solver.New(strategy, nominalRate)
	if err != nil {
		return 0, err
	}
	sol := rateSolver.Solve(flows, amount)
	s.metrics.ObserveSolve(string(strategy), sol.Iterations, sol.Converged)
	if !sol.Converged {
		s.logger.Warn("rpsn solver stopped before converging",
			"strategy", strategy,
			"iterations", sol.Iterations,
			"rate", sol.Rate,
		)
	}

	rpsn := calc.Percent(sol.Rate)
	if s.cache != nil {
		value := strconv.FormatFloat(rpsn, 'f', -1, 64)
		if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache rpsn", "key", key, "error", err)
		}
	}
	return rpsn, nil
}

// cacheKey identifies a solve by everything its result depends on.
func cacheKey(strategy solver.Strategy, flows schedule.CashFlows, amount, nominalRate float64) string {
	d := xxhash.New()
	_, _ = d.WriteString(string(strategy))

	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	write(amount)
	write(nominalRate)
	for _, f := range flows {
		write(f.Payment)
		write(f.Fraction)
	}
	return cacheKeyPrefix + strconv.FormatUint(d.Sum64(), 16)
}

// validateLimits rejects values beyond what the service is willing to
// compute. Zero values pass; the formulas decide whether a field is required.
func validateLimits(amount, interestRate float64, term int) error {
	if amount > MaxLoanAmount {
		return fmt.Errorf("%w: amount exceeds the maximum of %.2f", domain.ErrInvalidInput, MaxLoanAmount)
	}
	if interestRate > MaxInterestRate {
		return fmt.Errorf("%w: interest rate exceeds the maximum of %.2f", domain.ErrInvalidInput, MaxInterestRate)
	}
	if term > MaxTerm {
		return fmt.Errorf("%w: term exceeds the maximum of %d months", domain.ErrInvalidInput, MaxTerm)
	}
	return nil
}
