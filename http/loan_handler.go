package http

import (
	"context"
	"log/slog"
	"net/http"

	"loan-rpsn/domain"
	"loan-rpsn/schedule"
	"loan-rpsn/service"
)

type LoanHandler struct {
	service *service.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(service *service.LoanService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{service: service, logger: logger}
}

type stageFunc func(ctx context.Context, loan domain.Loan) (domain.Loan, error)

func withoutContext(fn func(domain.Loan) (domain.Loan, error)) stageFunc {
	return func(_ context.Context, loan domain.Loan) (domain.Loan, error) {
		return fn(loan)
	}
}

// stage decodes a loan record, runs fn on it and writes the enriched record
// back, unknown fields included.
func (h *LoanHandler) stage(fn stageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var loan domain.Loan
		if status, err := decodeJSON(w, r, &loan); err != nil {
			writeError(w, h.logger, status, err.Error())
			return
		}

		result, err := fn(r.Context(), loan)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, result)
	}
}

// CalculateLoan runs the full pipeline.
func (h *LoanHandler) CalculateLoan(w http.ResponseWriter, r *http.Request) {
	h.stage(h.service.Calculate)(w, r)
}

func (h *LoanHandler) Installment(w http.ResponseWriter, r *http.Request) {
	h.stage(withoutContext(h.service.WithInstallment))(w, r)
}

func (h *LoanHandler) SumPaid(w http.ResponseWriter, r *http.Request) {
	h.stage(withoutContext(h.service.WithSumPaid))(w, r)
}

func (h *LoanHandler) LoanCost(w http.ResponseWriter, r *http.Request) {
	h.stage(withoutContext(h.service.WithLoanCost))(w, r)
}

func (h *LoanHandler) Rpsn(w http.ResponseWriter, r *http.Request) {
	h.stage(h.service.WithRpsn)(w, r)
}

func (h *LoanHandler) InstallmentCount(w http.ResponseWriter, r *http.Request) {
	h.stage(withoutContext(h.service.WithInstallmentCount))(w, r)
}

type scheduleResponse struct {
	Entries schedule.Schedule `json:"entries"`
	Total   float64           `json:"total,omitempty"`
}

// Schedule lists the due dates of the loan. With an installment on the
// record the undiscounted total is included.
func (h *LoanHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var loan domain.Loan
	if status, err := decodeJSON(w, r, &loan); err != nil {
		writeError(w, h.logger, status, err.Error())
		return
	}

	entries, err := h.service.Schedule(loan)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := scheduleResponse{Entries: entries}
	if loan.Installment > 0 {
		total, err := h.service.GetSumPaidOnSchedule(loan.Term, loan.Installment, loan.AcceptanceDate, loan.DueDay)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp.Total = total
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
