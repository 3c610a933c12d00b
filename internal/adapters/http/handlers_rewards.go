package http

import (
	"net/http"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
)

func (h *Handler) describePlan(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	query := r.URL.Query()
	description, err := h.service.DescribePlan(r.Context(), actor, strings.TrimSpace(query.Get("participant_id")), strings.TrimSpace(query.Get("branch_id")))
	if err != nil {
		fail(w, r, "describe_plan", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", description)
}

func (h *Handler) listRewards(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	query := r.URL.Query()
	limit := parseIntOrDefault(query.Get("limit"), 20)
	offset := parseIntOrDefault(query.Get("offset"), 0)
	out, err := h.service.ListRewards(r.Context(), actor, strings.TrimSpace(query.Get("recipient_id")), strings.TrimSpace(query.Get("type")), limit, offset)
	if err != nil {
		fail(w, r, "list_rewards", err)
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

func (h *Handler) rewardSummary(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	summary, err := h.service.RewardSummary(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("recipient_id")))
	if err != nil {
		fail(w, r, "reward_summary", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", summary)
}

func (h *Handler) runDistribution(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.service.TriggerDistributionBatch(r.Context(), actor)
	if err != nil {
		fail(w, r, "run_distribution", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", result.Run)
}

func (h *Handler) listBatchRuns(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	runs, err := h.service.ListBatchRuns(r.Context(), actor, parseIntOrDefault(r.URL.Query().Get("limit"), 20))
	if err != nil {
		fail(w, r, "list_batch_runs", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": runs})
}
