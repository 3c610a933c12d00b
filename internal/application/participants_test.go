package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

func TestReassignUplineRejectsCycles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "a", "b", "c")

	if _, err := f.svc.ReassignUpline(context.Background(), admin, "a", "c"); !errors.Is(err, domain.ErrUplineCycle) {
		t.Fatalf("expected ErrUplineCycle moving a under its descendant, got %v", err)
	}
	if _, err := f.svc.ReassignUpline(context.Background(), admin, "a", "a"); !errors.Is(err, domain.ErrUplineCycle) {
		t.Fatalf("expected ErrUplineCycle for self upline, got %v", err)
	}

	f.chain(t, "z")
	moved, err := f.svc.ReassignUpline(context.Background(), admin, "c", "z")
	if err != nil {
		t.Fatalf("ReassignUpline error: %v", err)
	}
	if moved.UplineID != "z" {
		t.Fatalf("expected upline z, got %s", moved.UplineID)
	}
}

func TestRegisterParticipantValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "root")

	_, err := f.svc.RegisterParticipant(context.Background(), admin, application.RegisterParticipantInput{ParticipantID: "x", UplineID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown upline, got %v", err)
	}
	_, err = f.svc.RegisterParticipant(context.Background(), admin, application.RegisterParticipantInput{ParticipantID: "root"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
	}
	_, err = f.svc.RegisterParticipant(context.Background(), admin, application.RegisterParticipantInput{ParticipantID: "self", UplineID: "self"})
	if !errors.Is(err, domain.ErrUplineCycle) {
		t.Fatalf("expected ErrUplineCycle for self upline, got %v", err)
	}
}

func TestUplineChainIsNearestFirstAndBounded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "a", "b", "c", "d")

	chain, err := f.svc.UplineChain(context.Background(), admin, "d", 2)
	if err != nil {
		t.Fatalf("UplineChain error: %v", err)
	}
	if len(chain) != 2 || chain[0].ParticipantID != "c" || chain[1].ParticipantID != "b" {
		t.Fatalf("unexpected chain %+v", chain)
	}

	other := application.Actor{SubjectID: "b", Role: "investor"}
	if _, err := f.svc.UplineChain(context.Background(), other, "d", 0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden reading another participant's chain, got %v", err)
	}
}

func TestClaimRankGift(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "leader", "owner")
	f.invest(t, "inv-1", "owner", 1_500_000, "without_product")
	f.activate(t, "inv-1")

	leader := application.Actor{SubjectID: "leader", Role: "investor"}
	claim, err := f.svc.ClaimRankGift(context.Background(), leader, "", 1)
	if err != nil {
		t.Fatalf("ClaimRankGift error: %v", err)
	}
	if claim.RankTitle != "Sales Executive" || claim.Status != domain.RankClaimPending {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if _, err := f.svc.ClaimRankGift(context.Background(), leader, "", 1); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second claim, got %v", err)
	}
	if _, err := f.svc.ClaimRankGift(context.Background(), leader, "", 2); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for rank 2, got %v", err)
	}
	if _, err := f.svc.ClaimRankGift(context.Background(), leader, "", 42); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown rank, got %v", err)
	}

	claims, err := f.svc.ListRankClaims(context.Background(), leader, "")
	if err != nil {
		t.Fatalf("ListRankClaims error: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected one claim, got %d", len(claims))
	}
}

func TestDecideRankClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "leader", "owner")
	f.invest(t, "inv-1", "owner", 1_500_000, "without_product")
	f.activate(t, "inv-1")

	leader := application.Actor{SubjectID: "leader", Role: "investor"}
	claim, err := f.svc.ClaimRankGift(context.Background(), leader, "", 1)
	if err != nil {
		t.Fatalf("ClaimRankGift error: %v", err)
	}

	if _, err := f.svc.DecideRankClaim(context.Background(), leader, claim.ClaimID, "approved"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a non-operator, got %v", err)
	}
	if _, err := f.svc.ListAllRankClaims(context.Background(), leader, "", 10, 0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden listing all claims, got %v", err)
	}
	if _, err := f.svc.DecideRankClaim(context.Background(), admin, claim.ClaimID, "pending"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a non-terminal status, got %v", err)
	}
	if _, err := f.svc.DecideRankClaim(context.Background(), admin, "missing", "approved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	pending, err := f.svc.ListAllRankClaims(context.Background(), admin, "pending", 10, 0)
	if err != nil {
		t.Fatalf("ListAllRankClaims error: %v", err)
	}
	if len(pending) != 1 || pending[0].ClaimID != claim.ClaimID {
		t.Fatalf("expected the claim in the pending queue, got %+v", pending)
	}

	decided, err := f.svc.DecideRankClaim(context.Background(), admin, claim.ClaimID, " Approved ")
	if err != nil {
		t.Fatalf("DecideRankClaim error: %v", err)
	}
	if decided.Status != domain.RankClaimApproved || decided.DecidedBy != admin.SubjectID || decided.DecidedAt == nil {
		t.Fatalf("unexpected decided claim %+v", decided)
	}
	if _, err := f.svc.DecideRankClaim(context.Background(), admin, claim.ClaimID, "rejected"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on a second decision, got %v", err)
	}

	if pending, _ := f.svc.ListAllRankClaims(context.Background(), admin, "pending", 10, 0); len(pending) != 0 {
		t.Fatalf("expected empty pending queue, got %d", len(pending))
	}
	if _, err := f.svc.ListAllRankClaims(context.Background(), admin, "lost", 10, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown status filter, got %v", err)
	}

	events := 0
	for _, rec := range f.repos.Outbox.Pending() {
		if rec.EventType == domain.EventRankClaimDecided {
			events++
		}
	}
	if events != 1 {
		t.Fatalf("expected one decision event, got %d", events)
	}
}

func TestDescribePlanSummarisesVariants(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	desc, err := f.svc.DescribePlan(context.Background(), admin, "", "")
	if err != nil {
		t.Fatalf("DescribePlan error: %v", err)
	}
	if len(desc.Variants) != 2 {
		t.Fatalf("expected two variants, got %d", len(desc.Variants))
	}
	for _, v := range desc.Variants {
		if v.Variant == domain.VariantWithoutProduct && !v.SampleProfit.Equal(dec(t, "1020000")) {
			t.Fatalf("expected without_product sample profit 1020000, got %s", v.SampleProfit)
		}
		if !v.SampleProfitCap.Equal(dec(t, "5000000")) {
			t.Fatalf("expected sample cap 5000000, got %s", v.SampleProfitCap)
		}
	}
}

func TestRewardSummaryScopesToCaller(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "up", "owner")
	f.invest(t, "inv-1", "owner", 1_000_000, "without_product")
	f.activate(t, "inv-1")

	up := application.Actor{SubjectID: "up", Role: "investor"}
	summary, err := f.svc.RewardSummary(context.Background(), up, "owner")
	if err != nil {
		t.Fatalf("RewardSummary error: %v", err)
	}
	if summary.RecipientID != "up" || !summary.Total.Equal(dec(t, "60000")) {
		t.Fatalf("expected the caller's own summary of 60000, got %+v", summary)
	}
	list, err := f.svc.ListRewards(context.Background(), up, "", "referral_bonus", 10, 0)
	if err != nil {
		t.Fatalf("ListRewards error: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected one referral record, got %d", list.Total)
	}
	if _, err := f.svc.ListRewards(context.Background(), up, "", "bogus", 10, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
}

func saleEvent(t *testing.T, eventID, eventType string, data any) contracts.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return contracts.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		EventClass:    domain.CanonicalEventClassDomain,
		OccurredAt:    time.Now().UTC(),
		SourceService: "sales",
		SchemaVersion: "v1",
		Data:          raw,
	}
}

func TestHandleSaleApprovedIsDeduplicated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "up", "owner")
	f.invest(t, "inv-1", "owner", 1_000_000, "without_product")

	event := saleEvent(t, "evt-1", domain.EventSaleApproved, contracts.SaleApprovedPayload{InvestmentID: "inv-1"})
	if err := f.svc.HandleDomainEvent(context.Background(), event); err != nil {
		t.Fatalf("first HandleDomainEvent error: %v", err)
	}
	if err := f.svc.HandleDomainEvent(context.Background(), event); err != nil {
		t.Fatalf("replayed HandleDomainEvent error: %v", err)
	}
	if got := len(rewardsOfType(f.repos.Rewards.All(), domain.RewardTypeReferralBonus)); got != 1 {
		t.Fatalf("expected a single referral record, got %d", got)
	}

	again := saleEvent(t, "evt-2", domain.EventSaleApproved, contracts.SaleApprovedPayload{InvestmentID: "inv-1"})
	if err := f.svc.HandleDomainEvent(context.Background(), again); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for a second approval, got %v", err)
	}
}

func TestHandleSaleRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000, "with_product")

	event := saleEvent(t, "evt-1", domain.EventSaleRejected, contracts.SaleRejectedPayload{InvestmentID: "inv-1"})
	if err := f.svc.HandleDomainEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleDomainEvent error: %v", err)
	}
	inv, err := f.svc.GetInvestment(context.Background(), admin, "inv-1")
	if err != nil {
		t.Fatalf("GetInvestment error: %v", err)
	}
	if inv.Status != domain.InvestmentStatusRejected {
		t.Fatalf("expected rejected, got %s", inv.Status)
	}

	unknown := saleEvent(t, "evt-2", "sale.refunded", map[string]string{"investment_id": "inv-1"})
	if err := f.svc.HandleDomainEvent(context.Background(), unknown); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}
}

func TestSubmitInvestmentValidatesParticipants(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")

	_, err := f.svc.SubmitInvestment(context.Background(), admin, application.SubmitInvestmentInput{
		OwnerID:   "ghost",
		Principal: decimal.NewFromInt(100),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
	_, err = f.svc.SubmitInvestment(context.Background(), admin, application.SubmitInvestmentInput{
		OwnerID:   "owner",
		Principal: decimal.NewFromInt(100),
		Variant:   "gold",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown variant, got %v", err)
	}
	inv, err := f.svc.SubmitInvestment(context.Background(), admin, application.SubmitInvestmentInput{
		OwnerID:   "owner",
		Principal: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("SubmitInvestment error: %v", err)
	}
	if inv.InvestmentID == "" || inv.Variant != domain.VariantWithoutProduct || inv.Status != domain.InvestmentStatusPending {
		t.Fatalf("unexpected submitted investment %+v", inv)
	}
}
