package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

type RouterOptions struct {
	Verifier ports.TokenVerifier
	Metrics  http.Handler
	Ready    func() error
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverMiddleware)
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), requestIDFromContext(r.Context()))
				return
			}
		}
		writeSuccess(w, http.StatusOK, "ready", nil)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(opts.Verifier))

			r.Post("/investments", handler.submitInvestment)
			r.Get("/investments", handler.listInvestments)
			r.Get("/investments/{investment_id}", handler.getInvestment)
			r.Get("/investments/{investment_id}/statement", handler.getInvestmentStatement)
			r.Get("/investments/{investment_id}/rewards", handler.listInvestmentRewards)
			r.Post("/investments/{investment_id}/activate", handler.activateInvestment)
			r.Post("/investments/{investment_id}/reject", handler.rejectInvestment)
			r.Post("/investments/{investment_id}/distribute", handler.distributeInvestment)

			r.Post("/participants", handler.registerParticipant)
			r.Get("/participants/{participant_id}", handler.getParticipant)
			r.Put("/participants/{participant_id}/upline", handler.reassignUpline)
			r.Put("/participants/{participant_id}/status", handler.setParticipantStatus)
			r.Get("/participants/{participant_id}/upline-chain", handler.uplineChain)
			r.Post("/participants/{participant_id}/rank-claims", handler.claimRankGift)
			r.Get("/participants/{participant_id}/rank-claims", handler.listRankClaims)
			r.Get("/rank-claims", handler.listAllRankClaims)
			r.Put("/rank-claims/{claim_id}/status", handler.decideRankClaim)

			r.Get("/plans/effective", handler.describePlan)

			r.Get("/rewards", handler.listRewards)
			r.Get("/rewards/summary", handler.rewardSummary)

			r.Post("/distributions/run", handler.runDistribution)
			r.Get("/distributions/runs", handler.listBatchRuns)
		})
	})
	return r
}
