package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/security"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

func newRouter(t *testing.T, verifier ports.TokenVerifier) http.Handler {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Plans.Put(domain.DefaultPlanOverride())
	svc := application.NewService(application.Dependencies{
		Investments:  repos.Investments,
		Participants: repos.Participants,
		Rewards:      repos.Rewards,
		Plans:        repos.Plans,
		PlanCache:    memory.NewPlanCache(),
		BatchRuns:    repos.BatchRuns,
		Claims:       repos.Claims,
		EventDedup:   repos.EventDedup,
		RunLock:      memory.NewRunLock(),
	})
	return httpadapter.NewRouter(httpadapter.NewHandler(svc), httpadapter.RouterOptions{Verifier: verifier})
}

func do(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-Id", "req-"+strings.ReplaceAll(path, "/", "-"))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) contracts.ErrorResponse {
	t.Helper()
	var out contracts.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error response: %v body=%s", err, rr.Body.String())
	}
	return out
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	var out contracts.SuccessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode success response: %v", err)
	}
	raw, _ := json.Marshal(out.Data)
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestMutationsRequireRequestID(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/participants", strings.NewReader(`{"participant_id":"p1"}`))
	req.Header.Set("Authorization", "Bearer admin:ops-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rr.Code, http.StatusBadRequest)
	}
	if out := decodeError(t, rr); out.Error.Code != "missing_request_id" {
		t.Fatalf("unexpected error envelope: %+v", out)
	}
}

func TestRoutesRequireBearerToken(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)
	rr := do(t, router, http.MethodGet, "/v1/rewards", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d want=%d", rr.Code, http.StatusUnauthorized)
	}
	if rr := do(t, router, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", rr.Code)
	}
}

func TestInvestmentLifecycleRoutes(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)
	const op = "admin:ops-1"

	for _, body := range []string{
		`{"participant_id":"sponsor"}`,
		`{"participant_id":"investor","upline_id":"sponsor"}`,
	} {
		if rr := do(t, router, http.MethodPost, "/v1/participants", op, body); rr.Code != http.StatusCreated {
			t.Fatalf("register participant failed: status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := do(t, router, http.MethodPost, "/v1/investments", op, `{"investment_id":"inv-1","owner_id":"investor","principal":"1000000","variant":"without_product"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit failed: status=%d body=%s", rr.Code, rr.Body.String())
	}

	if rr := do(t, router, http.MethodPost, "/v1/investments/inv-1/activate", "user:investor", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("investor activation should be forbidden, got %d", rr.Code)
	}

	rr = do(t, router, http.MethodPost, "/v1/investments/inv-1/activate", op, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("activate failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var investment domain.Investment
	decodeData(t, rr, &investment)
	if investment.Status != domain.InvestmentStatusActive || investment.CurrentPhase != 1 {
		t.Fatalf("unexpected investment %+v", investment)
	}

	rr = do(t, router, http.MethodPost, "/v1/investments/inv-1/activate", op, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("second activation: got %d want %d", rr.Code, http.StatusConflict)
	}
	if out := decodeError(t, rr); out.Error.Code != "invalid_transition" {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}

	rr = do(t, router, http.MethodGet, "/v1/rewards/summary", "user:sponsor", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var summary domain.RewardSummary
	decodeData(t, rr, &summary)
	if summary.RecipientID != "sponsor" || summary.Count != 1 || summary.Total.String() != "60000" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if rr := do(t, router, http.MethodGet, "/v1/investments/inv-1", "user:sponsor", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("reading another owner's investment should be forbidden, got %d", rr.Code)
	}
	if rr := do(t, router, http.MethodGet, "/v1/investments/inv-1/statement", "user:investor", ""); rr.Code != http.StatusOK {
		t.Fatalf("owner statement failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestParticipantRouteErrors(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)
	const op = "finance:ops-2"

	if rr := do(t, router, http.MethodPost, "/v1/participants", op, `{"participant_id":"a"}`); rr.Code != http.StatusCreated {
		t.Fatalf("register failed: %d", rr.Code)
	}
	if rr := do(t, router, http.MethodPost, "/v1/participants", op, `{"participant_id":"b","upline_id":"a"}`); rr.Code != http.StatusCreated {
		t.Fatalf("register failed: %d", rr.Code)
	}

	rr := do(t, router, http.MethodPut, "/v1/participants/a/upline", op, `{"upline_id":"b"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("cycle: got %d want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if out := decodeError(t, rr); out.Error.Code != "upline_cycle" {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}

	if rr := do(t, router, http.MethodGet, "/v1/participants/ghost", op, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown participant: got %d want %d", rr.Code, http.StatusNotFound)
	}
	if rr := do(t, router, http.MethodPost, "/v1/participants", op, `{"participant_id":"c","extra":true}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRunDistributionRoute(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)

	if rr := do(t, router, http.MethodPost, "/v1/distributions/run", "user:someone", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("non-operator run: got %d want %d", rr.Code, http.StatusForbidden)
	}
	rr := do(t, router, http.MethodPost, "/v1/distributions/run", "system:scheduler", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("run failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var run domain.BatchRun
	decodeData(t, rr, &run)
	if run.Outcome != domain.BatchOutcomeSuccess {
		t.Fatalf("unexpected run %+v", run)
	}

	rr = do(t, router, http.MethodGet, "/v1/distributions/runs", "system:scheduler", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list runs failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestJWTAuthentication(t *testing.T) {
	t.Parallel()
	verifier, err := security.NewJWTVerifier("test-secret", "", "investment-engine")
	if err != nil {
		t.Fatalf("NewJWTVerifier error: %v", err)
	}
	router := newRouter(t, verifier)

	if rr := do(t, router, http.MethodGet, "/v1/plans/effective", "admin:ops-1", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("dev token must be refused when a verifier is configured, got %d", rr.Code)
	}
	token, err := verifier.Sign("ops-1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	rr := do(t, router, http.MethodGet, "/v1/plans/effective", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("plan lookup failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var desc application.PlanDescription
	decodeData(t, rr, &desc)
	if len(desc.Plan.ReferralRates) != 8 {
		t.Fatalf("expected 8 referral rates, got %d", len(desc.Plan.ReferralRates))
	}
}

func TestRankClaimDecisionRoutes(t *testing.T) {
	t.Parallel()
	router := newRouter(t, nil)
	const op = "admin:ops-1"

	for _, body := range []string{
		`{"participant_id":"sponsor"}`,
		`{"participant_id":"investor","upline_id":"sponsor"}`,
	} {
		if rr := do(t, router, http.MethodPost, "/v1/participants", op, body); rr.Code != http.StatusCreated {
			t.Fatalf("register participant failed: status=%d body=%s", rr.Code, rr.Body.String())
		}
	}
	if rr := do(t, router, http.MethodPost, "/v1/investments", op, `{"investment_id":"inv-1","owner_id":"investor","principal":"1500000","variant":"without_product"}`); rr.Code != http.StatusCreated {
		t.Fatalf("submit failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, router, http.MethodPost, "/v1/investments/inv-1/activate", op, ""); rr.Code != http.StatusOK {
		t.Fatalf("activate failed: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := do(t, router, http.MethodPost, "/v1/participants/sponsor/rank-claims", "user:sponsor", `{"rank_id":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("claim failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var claim domain.RankClaim
	decodeData(t, rr, &claim)
	path := "/v1/rank-claims/" + claim.ClaimID + "/status"

	if rr := do(t, router, http.MethodGet, "/v1/rank-claims?status=pending", "user:sponsor", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("non-operator listing: got %d want %d", rr.Code, http.StatusForbidden)
	}
	if rr := do(t, router, http.MethodPut, path, "user:sponsor", `{"status":"approved"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("self approval: got %d want %d", rr.Code, http.StatusForbidden)
	}
	rr = do(t, router, http.MethodPut, path, op, `{"status":"maybe"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	if out := decodeError(t, rr); out.Error.Code != "invalid_input" {
		t.Fatalf("unexpected error code %q", out.Error.Code)
	}

	rr = do(t, router, http.MethodPut, path, op, `{"status":"rejected"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("decision failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var decided domain.RankClaim
	decodeData(t, rr, &decided)
	if decided.Status != domain.RankClaimRejected || decided.DecidedBy != "ops-1" {
		t.Fatalf("unexpected decided claim %+v", decided)
	}
	if rr := do(t, router, http.MethodPut, path, op, `{"status":"approved"}`); rr.Code != http.StatusConflict {
		t.Fatalf("second decision: got %d want %d", rr.Code, http.StatusConflict)
	}
	if rr := do(t, router, http.MethodGet, "/v1/rank-claims?status=rejected", op, ""); rr.Code != http.StatusOK {
		t.Fatalf("list rejected claims failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
}
