package http

import (
	"log/slog"
	"net/http"

	"loan-rpsn/domain"
	"loan-rpsn/service"
)

type TermRecommendationHandler struct {
	service *service.TermRecommendationService
	logger  *slog.Logger
}

func NewTermRecommendationHandler(service *service.TermRecommendationService, logger *slog.Logger) *TermRecommendationHandler {
	return &TermRecommendationHandler{service: service, logger: logger}
}

func (h *TermRecommendationHandler) RecommendTerm(w http.ResponseWriter, r *http.Request) {
	var input domain.TermRecommendationInput
	if status, err := decodeJSON(w, r, &input); err != nil {
		h.logger.Debug("rejecting recommendation request", "error", err)
		writeError(w, h.logger, status, err.Error())
		return
	}

	result, err := h.service.RecommendTerm(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}
