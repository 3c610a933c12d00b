package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

const month = 30 * 24 * time.Hour

var admin = application.Actor{SubjectID: "admin-1", Role: application.RoleAdmin}

type fixture struct {
	svc   *application.Service
	repos *memory.Repositories
	clock *testclock.Clock
	lock  *memory.RunLock
}

type fixtureOption func(*application.Dependencies)

func withInvestments(wrap func(ports.InvestmentRepository) ports.InvestmentRepository) fixtureOption {
	return func(deps *application.Dependencies) {
		deps.Investments = wrap(deps.Investments)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Plans.Put(domain.DefaultPlanOverride())
	clk := testclock.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	lock := memory.NewRunLock()
	deps := application.Dependencies{
		Config: application.Config{
			MaturityInterval:             month,
			BatchMaxAttempts:             3,
			BatchRetryDelay:              5 * time.Second,
			EnableDomainEventConsumption: true,
		},
		Investments:  repos.Investments,
		Participants: repos.Participants,
		Rewards:      repos.Rewards,
		Plans:        repos.Plans,
		PlanCache:    memory.NewPlanCache(),
		BatchRuns:    repos.BatchRuns,
		Claims:       repos.Claims,
		EventDedup:   repos.EventDedup,
		RunLock:      lock,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        clk,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &fixture{svc: application.NewService(deps), repos: repos, clock: clk, lock: lock}
}

// advanceRetries releases n retry delays of the batch scheduler from a
// separate goroutine. The returned channel yields the first failure, or nil.
func (f *fixture) advanceRetries(n int) <-chan error {
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := f.clock.WaitAdvance(5*time.Second, 5*time.Second, 1); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	return done
}

// chain registers ids as a single referral line: ids[0] is the root and each
// later id sits directly below the one before it.
func (f *fixture) chain(t *testing.T, ids ...string) {
	t.Helper()
	upline := ""
	for _, id := range ids {
		_, err := f.svc.RegisterParticipant(context.Background(), admin, application.RegisterParticipantInput{
			ParticipantID: id,
			UplineID:      upline,
		})
		if err != nil {
			t.Fatalf("RegisterParticipant %s error: %v", id, err)
		}
		upline = id
	}
}

func (f *fixture) invest(t *testing.T, investmentID, ownerID string, principal int64, variant string) domain.Investment {
	t.Helper()
	inv, err := f.svc.SubmitInvestment(context.Background(), admin, application.SubmitInvestmentInput{
		InvestmentID: investmentID,
		OwnerID:      ownerID,
		Principal:    decimal.NewFromInt(principal),
		Variant:      variant,
	})
	if err != nil {
		t.Fatalf("SubmitInvestment error: %v", err)
	}
	return inv
}

func (f *fixture) activate(t *testing.T, investmentID string) domain.Investment {
	t.Helper()
	inv, err := f.svc.ActivateInvestment(context.Background(), admin, investmentID)
	if err != nil {
		t.Fatalf("ActivateInvestment error: %v", err)
	}
	return inv
}

func (f *fixture) participant(t *testing.T, id string) domain.Participant {
	t.Helper()
	p, err := f.repos.Participants.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID %s error: %v", id, err)
	}
	return p
}

func rewardsOfType(records []domain.RewardRecord, typ domain.RewardType) []domain.RewardRecord {
	var out []domain.RewardRecord
	for _, r := range records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func total(records []domain.RewardRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}
