package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
)

func (h *Handler) registerParticipant(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RegisterParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	participant, err := h.service.RegisterParticipant(r.Context(), actor, application.RegisterParticipantInput{
		ParticipantID: strings.TrimSpace(req.ParticipantID),
		UplineID:      strings.TrimSpace(req.UplineID),
		BranchID:      strings.TrimSpace(req.BranchID),
	})
	if err != nil {
		fail(w, r, "register_participant", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", participant)
}

func (h *Handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	participant, err := h.service.GetParticipant(r.Context(), actor, chi.URLParam(r, "participant_id"))
	if err != nil {
		fail(w, r, "get_participant", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", participant)
}

func (h *Handler) reassignUpline(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ReassignUplineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	participant, err := h.service.ReassignUpline(r.Context(), actor, chi.URLParam(r, "participant_id"), strings.TrimSpace(req.UplineID))
	if err != nil {
		fail(w, r, "reassign_upline", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", participant)
}

func (h *Handler) setParticipantStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.SetParticipantStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	participant, err := h.service.SetParticipantStatus(r.Context(), actor, chi.URLParam(r, "participant_id"), strings.TrimSpace(req.Status))
	if err != nil {
		fail(w, r, "set_participant_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", participant)
}

func (h *Handler) uplineChain(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	depth := parseIntOrDefault(r.URL.Query().Get("max_depth"), 0)
	chain, err := h.service.UplineChain(r.Context(), actor, chi.URLParam(r, "participant_id"), depth)
	if err != nil {
		fail(w, r, "upline_chain", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": chain})
}

func (h *Handler) claimRankGift(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ClaimRankGiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	claim, err := h.service.ClaimRankGift(r.Context(), actor, chi.URLParam(r, "participant_id"), req.RankID)
	if err != nil {
		fail(w, r, "claim_rank_gift", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", claim)
}

func (h *Handler) listRankClaims(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	claims, err := h.service.ListRankClaims(r.Context(), actor, chi.URLParam(r, "participant_id"))
	if err != nil {
		fail(w, r, "list_rank_claims", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": claims})
}

func (h *Handler) listAllRankClaims(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	q := r.URL.Query()
	limit := parseIntOrDefault(q.Get("limit"), 20)
	offset := parseIntOrDefault(q.Get("offset"), 0)
	claims, err := h.service.ListAllRankClaims(r.Context(), actor, q.Get("status"), limit, offset)
	if err != nil {
		fail(w, r, "list_all_rank_claims", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{"items": claims})
}

func (h *Handler) decideRankClaim(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.DecideRankClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	claim, err := h.service.DecideRankClaim(r.Context(), actor, chi.URLParam(r, "claim_id"), req.Status)
	if err != nil {
		fail(w, r, "decide_rank_claim", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", claim)
}
