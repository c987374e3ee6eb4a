package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"loan-rpsn/calc"
	"loan-rpsn/domain"
)

const (
	PreferenceMinimizeCost        = "minimize_cost"
	PreferenceMinimizeInstallment = "minimize_installment"
	PreferenceBalanced            = "balanced"
)

var preferences = []string{PreferenceMinimizeCost, PreferenceMinimizeInstallment, PreferenceBalanced}

type TermRecommendationService struct {
	loanService *LoanService
	logger      *slog.Logger
}

func NewTermRecommendationService(loanService *LoanService) *TermRecommendationService {
	return &TermRecommendationService{
		loanService: loanService,
		logger:      loanService.logger,
	}
}

// RecommendTerm prices every term in [MinTerm, MaxTerm] and ranks the ones
// whose installment fits MaxInstallment. A zero MaxInstallment means no cap.
func (s *TermRecommendationService) RecommendTerm(
	ctx context.Context,
	input domain.TermRecommendationInput,
) (domain.TermRecommendationResult, error) {
	if err := validateRecommendation(input); err != nil {
		return domain.TermRecommendationResult{}, err
	}

	var priced []domain.Loan
	for term := input.MinTerm; term <= input.MaxTerm; term++ {
		if err := ctx.Err(); err != nil {
			return domain.TermRecommendationResult{}, err
		}
		loan := domain.Loan{LoanTerms: domain.LoanTerms{
			Amount:         input.Amount,
			InterestRate:   domain.Float(input.InterestRate),
			Term:           term,
			Costs:          input.Costs,
			AcceptanceDate: input.AcceptanceDate,
			DueDay:         input.DueDay,
		}}

		result, err := s.loanService.Calculate(ctx, loan)
		if err != nil {
			s.logger.Warn("skipping term", "term", term, "error", err)
			continue
		}
		if input.MaxInstallment > 0 && result.Installment > input.MaxInstallment {
			continue
		}
		priced = append(priced, result)
	}

	if len(priced) == 0 {
		return domain.TermRecommendationResult{}, fmt.Errorf(
			"%w: no term between %d and %d keeps the installment under %.2f",
			domain.ErrInvalidInput, input.MinTerm, input.MaxTerm, input.MaxInstallment)
	}

	recommendations := score(priced, input)
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Score > recommendations[j].Score
	})
	recommendations[0].Reason = summarize(recommendations, input.Preference)

	return domain.TermRecommendationResult{
		RecommendedTerm: recommendations[0].Term,
		Recommendations: recommendations,
	}, nil
}

func validateRecommendation(input domain.TermRecommendationInput) error {
	switch {
	case input.Amount <= 0:
		return fmt.Errorf("%w: loan amount must be defined", domain.ErrInvalidInput)
	case input.InterestRate < 0:
		return fmt.Errorf("%w: interest rate must not be negative", domain.ErrInvalidInput)
	case input.Costs < 0:
		return fmt.Errorf("%w: costs must not be negative", domain.ErrInvalidInput)
	case input.MinTerm < MinTerm || input.MaxTerm < MinTerm:
		return fmt.Errorf("%w: term bounds must be at least %d", domain.ErrInvalidInput, MinTerm)
	case input.MinTerm > input.MaxTerm:
		return fmt.Errorf("%w: minimum term exceeds maximum term", domain.ErrInvalidInput)
	case input.MaxTerm > MaxTerm:
		return fmt.Errorf("%w: maximum term exceeds the limit of %d months", domain.ErrInvalidInput, MaxTerm)
	case input.MaxTerm-input.MinTerm > MaxTermRange:
		return fmt.Errorf("%w: term range exceeds %d months", domain.ErrInvalidInput, MaxTermRange)
	case input.MaxInstallment < 0:
		return fmt.Errorf("%w: maximum installment must not be negative", domain.ErrInvalidInput)
	case !slices.Contains(preferences, input.Preference):
		return fmt.Errorf("%w: unknown preference %q", domain.ErrInvalidInput, input.Preference)
	}
	return nil
}

// score rates each candidate 0-10 against the others: the cheapest, the
// lowest installment and the shortest term each get full marks on their axis.
func score(priced []domain.Loan, input domain.TermRecommendationInput) []domain.TermRecommendation {
	minCost, maxCost := domain.ValueOf(priced[0].LoanCost), domain.ValueOf(priced[0].LoanCost)
	minInst, maxInst := priced[0].Installment, priced[0].Installment
	minTerm, maxTerm := priced[0].Term, priced[0].Term
	for _, p := range priced[1:] {
		cost := domain.ValueOf(p.LoanCost)
		minCost, maxCost = min(minCost, cost), max(maxCost, cost)
		minInst, maxInst = min(minInst, p.Installment), max(maxInst, p.Installment)
		minTerm, maxTerm = min(minTerm, p.Term), max(maxTerm, p.Term)
	}

	recommendations := make([]domain.TermRecommendation, len(priced))
	for i, p := range priced {
		costScore := axisScore(domain.ValueOf(p.LoanCost), minCost, maxCost)
		installmentScore := axisScore(p.Installment, minInst, maxInst)
		termScore := axisScore(float64(p.Term), float64(minTerm), float64(maxTerm))

		var total float64
		switch input.Preference {
		case PreferenceMinimizeCost:
			total = 0.6*costScore + 0.2*installmentScore + 0.2*termScore
		case PreferenceMinimizeInstallment:
			total = 0.2*costScore + 0.6*installmentScore + 0.2*termScore
		default:
			total = 0.4*costScore + 0.4*installmentScore + 0.2*termScore
		}

		recommendations[i] = domain.TermRecommendation{
			Term:        p.Term,
			Installment: p.Installment,
			LoanCost:    domain.ValueOf(p.LoanCost),
			Rpsn:        p.Rpsn,
			Score:       calc.Round(total, 2),
			Reason:      reason(input.Preference),
		}
	}
	return recommendations
}

// axisScore maps value in [lo, hi] to 10 at lo and 0 at hi.
func axisScore(value, lo, hi float64) float64 {
	if hi <= lo {
		return 10
	}
	return 10 * (1 - (value-lo)/(hi-lo))
}

func reason(preference string) string {
	switch preference {
	case PreferenceMinimizeCost:
		return "Term chosen to keep the total loan cost low"
	case PreferenceMinimizeInstallment:
		return "Term chosen to keep the monthly installment low"
	default:
		return "Balance between monthly installment and total loan cost"
	}
}

// summarize explains the top recommendation against the runner-up.
func summarize(ranked []domain.TermRecommendation, preference string) string {
	top := ranked[0]
	text := fmt.Sprintf("%s: %d months at %.0f a month, %.2f paid on top of the principal",
		reason(preference), top.Term, top.Installment, top.LoanCost)
	if top.Rpsn != nil {
		text += fmt.Sprintf(" (RPSN %.2f%%)", *top.Rpsn)
	}
	if len(ranked) > 1 {
		next := ranked[1]
		text += fmt.Sprintf(". Next best is %d months at %.0f a month costing %.2f",
			next.Term, next.Installment, next.LoanCost)
	}
	return text + "."
}
