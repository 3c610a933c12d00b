package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

// store keeps every table behind one lock so that commits spanning
// investments, ledger, participants and outbox stay atomic.
type store struct {
	mu           sync.RWMutex
	investments  map[string]domain.Investment
	participants map[string]domain.Participant
	rewards      []domain.RewardRecord
	plans        map[string]domain.PlanOverride
	batchRuns    []domain.BatchRun
	claims       map[string]domain.RankClaim
	dedup        map[string]time.Time
	outbox       []ports.OutboxRecord
}

type Repositories struct {
	Investments  *InvestmentRepository
	Participants *ParticipantRepository
	Rewards      *RewardRepository
	Plans        *PlanRepository
	BatchRuns    *BatchRunRepository
	Claims       *RankClaimRepository
	EventDedup   *EventDedupRepository
	Outbox       *OutboxRepository
}

func NewRepositories() *Repositories {
	s := &store{
		investments:  make(map[string]domain.Investment),
		participants: make(map[string]domain.Participant),
		plans:        make(map[string]domain.PlanOverride),
		claims:       make(map[string]domain.RankClaim),
		dedup:        make(map[string]time.Time),
	}
	return &Repositories{
		Investments:  &InvestmentRepository{s: s},
		Participants: &ParticipantRepository{s: s},
		Rewards:      &RewardRepository{s: s},
		Plans:        &PlanRepository{s: s},
		BatchRuns:    &BatchRunRepository{s: s},
		Claims:       &RankClaimRepository{s: s},
		EventDedup:   &EventDedupRepository{s: s},
		Outbox:       &OutboxRepository{s: s},
	}
}

func planKey(scope domain.PlanScope, scopeID string) string {
	return string(scope) + ":" + scopeID
}

type InvestmentRepository struct {
	s *store
}

func (r *InvestmentRepository) Create(_ context.Context, investment domain.Investment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.investments[investment.InvestmentID]; exists {
		return domain.ErrConflict
	}
	r.s.investments[investment.InvestmentID] = investment
	return nil
}

func (r *InvestmentRepository) GetByID(_ context.Context, investmentID string) (domain.Investment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	investment, ok := r.s.investments[investmentID]
	if !ok {
		return domain.Investment{}, domain.ErrNotFound
	}
	return investment, nil
}

func (r *InvestmentRepository) ListByStatus(_ context.Context, status domain.InvestmentStatus) ([]domain.Investment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Investment, 0)
	for _, investment := range r.s.investments {
		if investment.Status == status {
			out = append(out, investment)
		}
	}
	slices.SortFunc(out, func(a, b domain.Investment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.InvestmentID, b.InvestmentID)
	})
	return out, nil
}

func (r *InvestmentRepository) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]domain.Investment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]domain.Investment, 0)
	for _, investment := range r.s.investments {
		if investment.OwnerID == ownerID {
			items = append(items, investment)
		}
	}
	slices.SortFunc(items, func(a, b domain.Investment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (r *InvestmentRepository) CommitActivation(_ context.Context, commit ports.ActivationCommit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.investments[commit.Investment.InvestmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != domain.InvestmentStatusPending {
		return domain.ErrInvalidTransition
	}
	r.s.investments[commit.Investment.InvestmentID] = commit.Investment
	r.s.rewards = append(r.s.rewards, commit.Rewards...)
	for _, delta := range commit.Volumes {
		p, ok := r.s.participants[delta.ParticipantID]
		if !ok {
			continue
		}
		p.SelfVolume = p.SelfVolume.Add(delta.Self)
		p.DirectVolume = p.DirectVolume.Add(delta.Direct)
		p.TotalVolume = p.TotalVolume.Add(delta.Total)
		p.UpdatedAt = commit.Investment.UpdatedAt
		r.s.participants[delta.ParticipantID] = p
	}
	r.s.enqueue(commit.Events...)
	return nil
}

func (r *InvestmentRepository) CommitDistribution(_ context.Context, commit ports.DistributionCommit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.investments[commit.Investment.InvestmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != domain.InvestmentStatusActive || !sameInstant(current.LastDistributedAt, commit.PreviousDistributedAt) {
		return domain.ErrConflict
	}
	r.s.investments[commit.Investment.InvestmentID] = commit.Investment
	r.s.rewards = append(r.s.rewards, commit.Rewards...)
	r.s.enqueue(commit.Events...)
	return nil
}

func (r *InvestmentRepository) CommitRejection(_ context.Context, investment domain.Investment, events []ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.investments[investment.InvestmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != domain.InvestmentStatusPending {
		return domain.ErrInvalidTransition
	}
	r.s.investments[investment.InvestmentID] = investment
	r.s.enqueue(events...)
	return nil
}

type ParticipantRepository struct {
	s *store
}

func (r *ParticipantRepository) Create(_ context.Context, participant domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.participants[participant.ParticipantID]; exists {
		return domain.ErrConflict
	}
	r.s.participants[participant.ParticipantID] = participant
	return nil
}

// Put stores a participant as is, bypassing the upline checks. Used for seeding.
func (r *ParticipantRepository) Put(participant domain.Participant) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.participants[participant.ParticipantID] = participant
}

func (r *ParticipantRepository) GetByID(_ context.Context, participantID string) (domain.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	participant, ok := r.s.participants[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrNotFound
	}
	return participant, nil
}

func (r *ParticipantRepository) UpdateUpline(_ context.Context, participantID, uplineID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	participant, ok := r.s.participants[participantID]
	if !ok {
		return domain.ErrNotFound
	}
	participant.UplineID = uplineID
	participant.UpdatedAt = at
	r.s.participants[participantID] = participant
	return nil
}

func (r *ParticipantRepository) UpdateStatus(_ context.Context, participantID string, status domain.ParticipantStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	participant, ok := r.s.participants[participantID]
	if !ok {
		return domain.ErrNotFound
	}
	participant.Status = status
	participant.UpdatedAt = at
	r.s.participants[participantID] = participant
	return nil
}

func (r *ParticipantRepository) AdvanceRank(_ context.Context, advance ports.RankAdvance) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	participant, ok := r.s.participants[advance.ParticipantID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if participant.Rank >= advance.Rank {
		return false, nil
	}
	participant.Rank = advance.Rank
	participant.UpdatedAt = advance.At
	r.s.participants[advance.ParticipantID] = participant
	r.s.enqueue(advance.Event)
	return true, nil
}

type RewardRepository struct {
	s *store
}

func (r *RewardRepository) ListByRecipient(_ context.Context, recipientID string, rewardType domain.RewardType, limit, offset int) ([]domain.RewardRecord, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]domain.RewardRecord, 0)
	for i := len(r.s.rewards) - 1; i >= 0; i-- {
		rec := r.s.rewards[i]
		if rec.RecipientID != recipientID {
			continue
		}
		if rewardType != "" && rec.Type != rewardType {
			continue
		}
		items = append(items, rec)
	}
	page, total := paginate(items, limit, offset)
	return page, total, nil
}

func (r *RewardRepository) ListByInvestment(_ context.Context, investmentID string) ([]domain.RewardRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.RewardRecord, 0)
	for _, rec := range r.s.rewards {
		if rec.InvestmentID == investmentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *RewardRepository) Summarize(_ context.Context, recipientID string) (domain.RewardSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	records := make([]domain.RewardRecord, 0)
	for _, rec := range r.s.rewards {
		if rec.RecipientID == recipientID {
			records = append(records, rec)
		}
	}
	return domain.SummarizeRewards(recipientID, records), nil
}

// All returns a copy of the whole ledger in append order.
func (r *RewardRepository) All() []domain.RewardRecord {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.RewardRecord(nil), r.s.rewards...)
}

type PlanRepository struct {
	s *store
}

func (r *PlanRepository) Get(_ context.Context, scope domain.PlanScope, scopeID string) (domain.PlanOverride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	override, ok := r.s.plans[planKey(scope, scopeID)]
	if !ok {
		return domain.PlanOverride{}, domain.ErrNotFound
	}
	return override, nil
}

// Put installs a configuration tier.
func (r *PlanRepository) Put(override domain.PlanOverride) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if override.PlanID == "" {
		override.PlanID = uuid.NewString()
	}
	r.s.plans[planKey(override.Scope, override.ScopeID)] = override
}

type BatchRunRepository struct {
	s *store
}

func (r *BatchRunRepository) Append(_ context.Context, run domain.BatchRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.batchRuns = append(r.s.batchRuns, run)
	return nil
}

func (r *BatchRunRepository) List(_ context.Context, jobName string, limit int) ([]domain.BatchRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.BatchRun, 0)
	for i := len(r.s.batchRuns) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if jobName == "" || r.s.batchRuns[i].JobName == jobName {
			out = append(out, r.s.batchRuns[i])
		}
	}
	return out, nil
}

type RankClaimRepository struct {
	s *store
}

func (r *RankClaimRepository) Create(_ context.Context, claim domain.RankClaim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.claims {
		if existing.ParticipantID == claim.ParticipantID && existing.RankID == claim.RankID {
			return domain.ErrConflict
		}
	}
	r.s.claims[claim.ClaimID] = claim
	return nil
}

func (r *RankClaimRepository) ListByParticipant(_ context.Context, participantID string) ([]domain.RankClaim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.RankClaim, 0)
	for _, claim := range r.s.claims {
		if claim.ParticipantID == participantID {
			out = append(out, claim)
		}
	}
	slices.SortFunc(out, func(a, b domain.RankClaim) int { return a.RankID - b.RankID })
	return out, nil
}

func (r *RankClaimRepository) GetByID(_ context.Context, claimID string) (domain.RankClaim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	claim, ok := r.s.claims[claimID]
	if !ok {
		return domain.RankClaim{}, domain.ErrNotFound
	}
	return claim, nil
}

func (r *RankClaimRepository) List(_ context.Context, status domain.RankClaimStatus, limit, offset int) ([]domain.RankClaim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.RankClaim, 0)
	for _, claim := range r.s.claims {
		if status == "" || claim.Status == status {
			out = append(out, claim)
		}
	}
	slices.SortFunc(out, func(a, b domain.RankClaim) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ClaimID, b.ClaimID)
	})
	items, _ := paginate(out, limit, offset)
	return items, nil
}

func (r *RankClaimRepository) CommitDecision(_ context.Context, claim domain.RankClaim, events []ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.claims[claim.ClaimID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != domain.RankClaimPending {
		return domain.ErrInvalidTransition
	}
	r.s.claims[claim.ClaimID] = claim
	r.s.enqueue(events...)
	return nil
}

type EventDedupRepository struct {
	s *store
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	expiresAt, ok := r.s.dedup[eventID]
	return ok && now.Before(expiresAt), nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.dedup[eventID] = expiresAt
	return nil
}

func (s *store) enqueue(events ...ports.OutboxEvent) {
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		s.outbox = append(s.outbox, ports.OutboxRecord{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      event.Payload,
			CreatedAt:    event.OccurredAt,
		})
	}
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func paginate[T any](items []T, limit, offset int) ([]T, int) {
	total := len(items)
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []T{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out, total
}
