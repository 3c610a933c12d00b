package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
)

func TestOperationErrorFieldsCarryActorAndRouteIDs(t *testing.T) {
	t.Parallel()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("claim_id", "claim-7")
	ctx := context.WithValue(context.Background(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, actorKey, application.Actor{SubjectID: "ops-1", Role: application.RoleAdmin})
	ctx = context.WithValue(ctx, contextKey("request_id"), "req-1")

	fields := operationErrorFields(ctx, "decide_rank_claim", http.StatusConflict, "conflict", "claim already decided", errors.New("boom"))
	got := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}
	want := map[string]any{
		"actor_id":   "ops-1",
		"actor_role": application.RoleAdmin,
		"claim_id":   "claim-7",
		"request_id": "req-1",
		"error":      "boom",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("field %s: expected %v, got %v", key, value, got[key])
		}
	}
	if _, ok := got["investment_id"]; ok {
		t.Fatalf("unexpected investment_id field without a route param")
	}
}

func TestOperationErrorFieldsWithoutActor(t *testing.T) {
	t.Parallel()
	fields := operationErrorFields(context.Background(), "verify_token", http.StatusUnauthorized, "unauthorized", "invalid bearer token", nil)
	for i := 0; i < len(fields); i += 2 {
		if fields[i] == "actor_id" || fields[i] == "error" {
			t.Fatalf("unexpected field %v", fields[i])
		}
	}
}
