package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

func (h *Handler) submitInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.SubmitInvestmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	principal, err := domain.ParseAmount(req.Principal)
	if err != nil {
		fail(w, r, "submit_investment", err)
		return
	}
	investment, err := h.service.SubmitInvestment(r.Context(), actor, application.SubmitInvestmentInput{
		InvestmentID: strings.TrimSpace(req.InvestmentID),
		OwnerID:      strings.TrimSpace(req.OwnerID),
		ReferrerID:   strings.TrimSpace(req.ReferrerID),
		BranchID:     strings.TrimSpace(req.BranchID),
		Principal:    principal,
		Variant:      strings.TrimSpace(req.Variant),
	})
	if err != nil {
		fail(w, r, "submit_investment", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", investment)
}

func (h *Handler) listInvestments(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)
	out, err := h.service.ListInvestments(r.Context(), actor, ownerID, limit, offset)
	if err != nil {
		fail(w, r, "list_investments", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"items": out.Items,
		"pagination": contracts.Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  out.Total,
		},
	})
}

func (h *Handler) getInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	investment, err := h.service.GetInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "get_investment", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", investment)
}

func (h *Handler) getInvestmentStatement(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	statement, err := h.service.GetInvestmentStatement(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "get_investment_statement", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", statement)
}

func (h *Handler) listInvestmentRewards(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	records, err := h.service.ListInvestmentRewards(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "list_investment_rewards", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": records})
}

func (h *Handler) activateInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	investment, err := h.service.ActivateInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "activate_investment", err)
		return
	}
	writeSuccess(w, http.StatusOK, "investment activated", investment)
}

func (h *Handler) rejectInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	investment, err := h.service.RejectInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "reject_investment", err)
		return
	}
	writeSuccess(w, http.StatusOK, "investment rejected", investment)
}

func (h *Handler) distributeInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.service.DistributeInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		fail(w, r, "distribute_investment", err)
		return
	}
	message := "distribution not due"
	if result.Due {
		message = "distribution applied"
	}
	writeSuccess(w, http.StatusOK, message, result)
}
