package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type flakyInvestments struct {
	ports.InvestmentRepository
	failures int
	calls    int
}

func (f *flakyInvestments) ListByStatus(ctx context.Context, status domain.InvestmentStatus) ([]domain.Investment, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.InvestmentRepository.ListByStatus(ctx, status)
}

func runBatch(t *testing.T, f *fixture) domain.BatchRun {
	t.Helper()
	result, err := f.svc.RunDistributionBatch(context.Background())
	if err != nil {
		t.Fatalf("RunDistributionBatch error: %v", err)
	}
	return result.Run
}

func TestDistributionPaysProfitAndMatchingOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "a", "b", "owner")
	f.invest(t, "inv-1", "owner", 1_000_000, "without_product")
	f.activate(t, "inv-1")

	if run := runBatch(t, f); run.Processed != 0 || run.Active != 1 {
		t.Fatalf("expected nothing due right after activation, got %+v", run)
	}

	f.clock.Advance(month)
	run := runBatch(t, f)
	if run.Outcome != domain.BatchOutcomeSuccess || run.Processed != 1 || run.Attempts != 1 {
		t.Fatalf("unexpected batch run %+v", run)
	}

	records, err := f.repos.Rewards.ListByInvestment(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("ListByInvestment error: %v", err)
	}
	profit := rewardsOfType(records, domain.RewardTypeProfitShare)
	if len(profit) != 1 || profit[0].RecipientID != "owner" || !profit[0].Amount.Equal(dec(t, "70000")) {
		t.Fatalf("unexpected profit share records %+v", profit)
	}
	matching := rewardsOfType(records, domain.RewardTypeMatchingBonus)
	if len(matching) != 2 {
		t.Fatalf("expected 2 matching records, got %d", len(matching))
	}
	for _, m := range matching {
		switch m.RecipientID {
		case "b":
			if !m.Amount.Equal(dec(t, "4200")) {
				t.Fatalf("expected level 1 matching 4200, got %s", m.Amount)
			}
		case "a":
			if !m.Amount.Equal(dec(t, "3500")) {
				t.Fatalf("expected level 2 matching 3500, got %s", m.Amount)
			}
		default:
			t.Fatalf("unexpected matching recipient %s", m.RecipientID)
		}
	}

	if again := runBatch(t, f); again.Processed != 0 {
		t.Fatalf("expected second run in the same window to be a no-op, got %+v", again)
	}
	after, err := f.repos.Rewards.ListByInvestment(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("ListByInvestment error: %v", err)
	}
	if len(after) != len(records) {
		t.Fatalf("expected no new ledger rows, got %d then %d", len(records), len(after))
	}
}

func TestDistributionMovesToPhaseTwo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000_000, "without_product")
	f.activate(t, "inv-1")

	for i := 0; i < 3; i++ {
		f.clock.Advance(month)
		if run := runBatch(t, f); run.Processed != 1 {
			t.Fatalf("month %d: expected one investment processed, got %+v", i+1, run)
		}
	}
	inv, err := f.svc.GetInvestment(context.Background(), admin, "inv-1")
	if err != nil {
		t.Fatalf("GetInvestment error: %v", err)
	}
	if inv.CurrentPhase != 2 || !inv.CurrentRate.Equal(dec(t, "0.08")) {
		t.Fatalf("expected phase 2 at 8%%, got phase %d at %s", inv.CurrentPhase, inv.CurrentRate)
	}
	if inv.MonthsCompleted != 3 || !inv.ProfitEarned.Equal(dec(t, "210000")) {
		t.Fatalf("unexpected progress months=%d earned=%s", inv.MonthsCompleted, inv.ProfitEarned)
	}

	f.clock.Advance(month)
	runBatch(t, f)
	records, err := f.repos.Rewards.ListByInvestment(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("ListByInvestment error: %v", err)
	}
	profit := rewardsOfType(records, domain.RewardTypeProfitShare)
	if last := profit[len(profit)-1]; !last.Amount.Equal(dec(t, "80000")) {
		t.Fatalf("expected phase 2 increment 80000, got %s", last.Amount)
	}
}

func TestDistributionTruncatesAtCapAndCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	multiplier := decimal.RequireFromString("0.15")
	f.repos.Plans.Put(domain.PlanOverride{
		Scope:               domain.PlanScopeParticipant,
		ScopeID:             "owner",
		ProfitCapMultiplier: &multiplier,
	})
	f.chain(t, "up", "owner")
	f.invest(t, "inv-1", "owner", 1_000_000, "without_product")
	activated := f.activate(t, "inv-1")
	if !activated.ProfitCap.Equal(dec(t, "150000")) {
		t.Fatalf("expected cap 150000, got %s", activated.ProfitCap)
	}

	for i := 0; i < 4; i++ {
		f.clock.Advance(month)
		runBatch(t, f)
	}

	inv, err := f.svc.GetInvestment(context.Background(), admin, "inv-1")
	if err != nil {
		t.Fatalf("GetInvestment error: %v", err)
	}
	if inv.Status != domain.InvestmentStatusCompleted || inv.CompletionReason != domain.CompletionCapReached {
		t.Fatalf("expected cap completion, got status=%s reason=%s", inv.Status, inv.CompletionReason)
	}
	if !inv.ProfitEarned.Equal(inv.ProfitCap) {
		t.Fatalf("expected earned %s to equal cap %s", inv.ProfitEarned, inv.ProfitCap)
	}

	records, err := f.repos.Rewards.ListByInvestment(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("ListByInvestment error: %v", err)
	}
	profit := rewardsOfType(records, domain.RewardTypeProfitShare)
	if len(profit) != 3 || !total(profit).Equal(dec(t, "150000")) {
		t.Fatalf("expected 3 profit rows totalling 150000, got %d totalling %s", len(profit), total(profit))
	}
	matching := rewardsOfType(records, domain.RewardTypeMatchingBonus)
	if last := matching[len(matching)-1]; !last.Amount.Equal(dec(t, "600")) || !last.BaseAmount.Equal(dec(t, "10000")) {
		t.Fatalf("expected final matching on the truncated 10000, got amount=%s base=%s", last.Amount, last.BaseAmount)
	}

	completed := 0
	for _, rec := range f.repos.Outbox.Pending() {
		if rec.EventType == domain.EventInvestmentCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected one completion event, got %d", completed)
	}
}

func TestDistributionRetriesAndRecordsFailure(t *testing.T) {
	t.Parallel()
	flaky := &flakyInvestments{failures: 10}
	f := newFixture(t, withInvestments(func(inner ports.InvestmentRepository) ports.InvestmentRepository {
		flaky.InvestmentRepository = inner
		return flaky
	}))
	started := f.clock.Now()
	waits := f.advanceRetries(2)

	run := runBatch(t, f)
	if err := <-waits; err != nil {
		t.Fatalf("retry delay was not awaited: %v", err)
	}
	if run.Outcome != domain.BatchOutcomeFailed || run.Attempts != 3 {
		t.Fatalf("expected failed run after 3 attempts, got %+v", run)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", flaky.calls)
	}
	if !strings.Contains(run.Error, "connection reset") {
		t.Fatalf("expected last error in run log, got %q", run.Error)
	}
	if got := run.FinishedAt.Sub(started); got != 10*time.Second {
		t.Fatalf("expected two 5s retry delays on the clock, got %s", got)
	}

	runs, err := f.svc.ListBatchRuns(context.Background(), admin, 10)
	if err != nil {
		t.Fatalf("ListBatchRuns error: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != domain.BatchOutcomeFailed {
		t.Fatalf("expected failed run in log, got %+v", runs)
	}
}

func TestDistributionRecoversOnRetry(t *testing.T) {
	t.Parallel()
	flaky := &flakyInvestments{failures: 2}
	f := newFixture(t, withInvestments(func(inner ports.InvestmentRepository) ports.InvestmentRepository {
		flaky.InvestmentRepository = inner
		return flaky
	}))
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000, "with_product")
	f.activate(t, "inv-1")
	f.clock.Advance(month)
	waits := f.advanceRetries(2)

	run := runBatch(t, f)
	if err := <-waits; err != nil {
		t.Fatalf("retry delay was not awaited: %v", err)
	}
	if run.Outcome != domain.BatchOutcomeSuccess || run.Attempts != 3 || run.Processed != 1 {
		t.Fatalf("expected success on third attempt, got %+v", run)
	}
}

func TestDistributionSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000, "with_product")
	f.activate(t, "inv-1")
	f.clock.Advance(month)

	release, acquired, err := f.lock.TryAcquire(context.Background(), domain.DistributionJobName, time.Hour)
	if err != nil || !acquired {
		t.Fatalf("expected to take the lock, acquired=%v err=%v", acquired, err)
	}
	if run := runBatch(t, f); run.Outcome != domain.BatchOutcomeSkipped {
		t.Fatalf("expected skipped run, got %+v", run)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if run := runBatch(t, f); run.Outcome != domain.BatchOutcomeSuccess || run.Processed != 1 {
		t.Fatalf("expected run to proceed after release, got %+v", run)
	}
}

func TestDistributionSkipsSuspendedOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000, "with_product")
	f.activate(t, "inv-1")
	if _, err := f.svc.SetParticipantStatus(context.Background(), admin, "owner", "suspended"); err != nil {
		t.Fatalf("SetParticipantStatus error: %v", err)
	}
	f.clock.Advance(month)

	run := runBatch(t, f)
	if run.Processed != 0 || run.Active != 1 {
		t.Fatalf("expected suspended owner to be skipped, got %+v", run)
	}
}

func TestDistributeInvestmentSingle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.chain(t, "owner")
	f.invest(t, "inv-1", "owner", 1_000, "with_product")

	if _, err := f.svc.DistributeInvestment(context.Background(), admin, "inv-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending investment, got %v", err)
	}
	f.activate(t, "inv-1")
	f.clock.Advance(month)

	result, err := f.svc.DistributeInvestment(context.Background(), admin, "inv-1")
	if err != nil {
		t.Fatalf("DistributeInvestment error: %v", err)
	}
	if !result.Due || len(result.Rewards) != 1 || !result.Rewards[0].Amount.Equal(dec(t, "50")) {
		t.Fatalf("unexpected distribution result %+v", result)
	}
}

func TestTriggerDistributionBatchRequiresOperator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	investor := application.Actor{SubjectID: "owner", Role: "investor"}
	if _, err := f.svc.TriggerDistributionBatch(context.Background(), investor); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	result, err := f.svc.TriggerDistributionBatch(context.Background(), admin)
	if err != nil {
		t.Fatalf("TriggerDistributionBatch error: %v", err)
	}
	if result.Run.Outcome != domain.BatchOutcomeSuccess {
		t.Fatalf("expected success on an empty book, got %+v", result.Run)
	}
}
