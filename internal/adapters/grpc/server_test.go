package grpc

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

func newServer(t *testing.T) (*InvestmentInternalServer, *application.Service) {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Plans.Put(domain.DefaultPlanOverride())
	svc := application.NewService(application.Dependencies{
		Investments:  repos.Investments,
		Participants: repos.Participants,
		Rewards:      repos.Rewards,
		Plans:        repos.Plans,
		BatchRuns:    repos.BatchRuns,
		Claims:       repos.Claims,
		EventDedup:   repos.EventDedup,
		RunLock:      memory.NewRunLock(),
	})
	return NewInvestmentInternalServer(svc), svc
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return req
}

func TestActivateInvestmentOverGRPC(t *testing.T) {
	t.Parallel()
	server, svc := newServer(t)
	ctx := context.Background()
	system := application.SystemActor("req-1")
	if _, err := svc.RegisterParticipant(ctx, system, application.RegisterParticipantInput{ParticipantID: "owner"}); err != nil {
		t.Fatalf("RegisterParticipant error: %v", err)
	}
	if _, err := svc.SubmitInvestment(ctx, system, application.SubmitInvestmentInput{
		InvestmentID: "inv-1",
		OwnerID:      "owner",
		Principal:    decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("SubmitInvestment error: %v", err)
	}

	resp, err := server.ActivateInvestment(ctx, request(t, map[string]any{"investment_id": "inv-1"}))
	if err != nil {
		t.Fatalf("ActivateInvestment error: %v", err)
	}
	if got := resp.GetFields()["status"].GetStringValue(); got != string(domain.InvestmentStatusActive) {
		t.Fatalf("expected active status, got %q", got)
	}

	_, err = server.ActivateInvestment(ctx, request(t, map[string]any{"investment_id": "inv-1"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
	_, err = server.RejectInvestment(ctx, request(t, map[string]any{"investment_id": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_, err = server.ActivateInvestment(ctx, request(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRunDistributionAndResolvePlanOverGRPC(t *testing.T) {
	t.Parallel()
	server, _ := newServer(t)

	run, err := server.RunDistribution(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("RunDistribution error: %v", err)
	}
	if got := run.GetFields()["outcome"].GetStringValue(); got != string(domain.BatchOutcomeSuccess) {
		t.Fatalf("expected success outcome, got %q", got)
	}

	plan, err := server.ResolvePlan(context.Background(), request(t, map[string]any{}))
	if err != nil {
		t.Fatalf("ResolvePlan error: %v", err)
	}
	if rates := plan.GetFields()["referral_rates"].GetListValue().GetValues(); len(rates) != 8 {
		t.Fatalf("expected 8 referral rates, got %d", len(rates))
	}
}
