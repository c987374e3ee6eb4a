package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"loan-rpsn/observability"
)

type RouterConfig struct {
	Loan    *LoanHandler
	Term    *TermRecommendationHandler
	Health  *HealthHandler
	Limiter *RateLimiter // nil disables rate limiting
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewRouter wires every endpoint. Health checks and /metrics bypass the rate
// limiter.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware(cfg.Logger, cfg.Metrics))

	r.HandleFunc("/healthz", cfg.Health.Healthz).Methods("GET")
	r.HandleFunc("/readyz", cfg.Health.Readyz).Methods("GET")
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/loan").Subrouter()
	if cfg.Limiter != nil {
		api.Use(RateLimitMiddleware(cfg.Limiter, cfg.Logger))
	}
	api.HandleFunc("/calculate", cfg.Loan.CalculateLoan).Methods("POST")
	api.HandleFunc("/installment", cfg.Loan.Installment).Methods("POST")
	api.HandleFunc("/sum-paid", cfg.Loan.SumPaid).Methods("POST")
	api.HandleFunc("/cost", cfg.Loan.LoanCost).Methods("POST")
	api.HandleFunc("/rpsn", cfg.Loan.Rpsn).Methods("POST")
	api.HandleFunc("/installment-count", cfg.Loan.InstallmentCount).Methods("POST")
	api.HandleFunc("/schedule", cfg.Loan.Schedule).Methods("POST")
	api.HandleFunc("/recommend-term", cfg.Term.RecommendTerm).Methods("POST")

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, cfg.Logger, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, cfg.Logger, http.StatusNotFound, "not found")
	})
	return r
}
