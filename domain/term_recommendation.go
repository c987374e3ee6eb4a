package domain

import "cloud.google.com/go/civil"

type TermRecommendationInput struct {
	Amount         float64    `json:"amount"`
	InterestRate   float64    `json:"interestRate"`
	Costs          float64    `json:"costs,omitempty"`
	MinTerm        int        `json:"minTerm"`
	MaxTerm        int        `json:"maxTerm"`
	MaxInstallment float64    `json:"maxInstallment"`
	AcceptanceDate civil.Date `json:"acceptanceDate,omitzero"`
	DueDay         int        `json:"dueDay,omitempty"`
	Preference     string     `json:"preference"` // "minimize_cost", "minimize_installment", "balanced"
}

type TermRecommendation struct {
	Term        int      `json:"term"`
	Installment float64  `json:"installment"`
	LoanCost    float64  `json:"loanCost"`
	Rpsn        *float64 `json:"rpsn,omitempty"` // nil when no schedule was given
	Score       float64  `json:"score"`
	Reason      string   `json:"reason"`
}

type TermRecommendationResult struct {
	RecommendedTerm int                  `json:"recommendedTerm"`
	Recommendations []TermRecommendation `json:"recommendations"`
}
