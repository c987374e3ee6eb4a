package domain

import (
	"encoding/json"
	"maps"

	"cloud.google.com/go/civil"
)

// LoanTerms are the inputs a loan is agreed on. InterestRate is a pointer
// because zero is a valid rate; nil means the caller did not give one.
type LoanTerms struct {
	Amount         float64    `json:"amount,omitempty"`
	InterestRate   *float64   `json:"interestRate,omitempty"`
	Term           int        `json:"term,omitempty"`
	Costs          float64    `json:"costs,omitempty"`
	AcceptanceDate civil.Date `json:"acceptanceDate,omitzero"`
	DueDay         int        `json:"dueDay,omitempty"`
}

// Rate returns the interest rate, or zero when unset.
func (t LoanTerms) Rate() float64 {
	return ValueOf(t.InterestRate)
}

// HasSchedule reports whether the terms carry what is needed to lay out the
// installment dates.
func (t LoanTerms) HasSchedule() bool {
	return t.AcceptanceDate.IsValid() && t.DueDay > 0
}

// Loan is the record the calculation stages accumulate into. Every stage
// returns a copy with its own field set; fields the service does not know
// about are kept in Extra and written back out untouched.
type Loan struct {
	LoanTerms

	Installment float64 `json:"installment,omitempty"`
	SumPaid     float64 `json:"sumPaid,omitempty"`
	// LoanCost and Rpsn can legitimately be zero, so nil marks them unset.
	LoanCost *float64 `json:"loanCost,omitempty"`
	Rpsn     *float64 `json:"rpsn,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// loanFields has the same fields as Loan without the JSON methods.
type loanFields Loan

var loanKeys = []string{
	"amount", "interestRate", "term", "costs", "acceptanceDate", "dueDay",
	"installment", "sumPaid", "loanCost", "rpsn",
}

// Clone returns a copy that shares no mutable state with l.
func (l Loan) Clone() Loan {
	l.InterestRate = cloneFloat(l.InterestRate)
	l.LoanCost = cloneFloat(l.LoanCost)
	l.Rpsn = cloneFloat(l.Rpsn)
	l.Extra = maps.Clone(l.Extra)
	return l
}

// Float returns a pointer to v, for filling optional fields.
func Float(v float64) *float64 {
	return &v
}

// ValueOf dereferences p, treating nil as zero.
func ValueOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

func (l *Loan) UnmarshalJSON(data []byte) error {
	var fields loanFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	for _, key := range loanKeys {
		delete(extra, key)
	}
	*l = Loan(fields)
	if len(extra) > 0 {
		l.Extra = extra
	}
	return nil
}

func (l Loan) MarshalJSON() ([]byte, error) {
	own, err := json.Marshal(loanFields(l))
	if err != nil || len(l.Extra) == 0 {
		return own, err
	}

	merged := maps.Clone(l.Extra)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(own, &fields); err != nil {
		return nil, err
	}
	// known fields win over extras of the same name
	maps.Copy(merged, fields)
	return json.Marshal(merged)
}
