package service

import "time"

const (
	MaxLoanAmount   = 1_000_000_000.0 // one billion
	MaxInterestRate = 10.0            // 1000% a year, the top of the RPSN search range
	MaxTerm         = 600             // 50 years of monthly installments
	MinTerm         = 1

	// MaxTermRange caps how many terms one recommendation evaluates.
	MaxTermRange = 120

	DefaultCacheTTL = 24 * time.Hour

	cacheKeyPrefix = "rpsn:"
)
