package application

import (
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type Config struct {
	ServiceName string

	// MaturityInterval is the minimum time between two profit increments of
	// one investment. It is independent of how often the scheduler fires.
	MaturityInterval time.Duration
	BatchMaxAttempts int
	BatchRetryDelay  time.Duration
	RunLockTTL       time.Duration

	PlanCacheTTL                 time.Duration
	EventDedupTTL                time.Duration
	EnableDomainEventConsumption bool
	SamplePrincipal              decimal.Decimal
}

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleSystem  = "system"
)

type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

// SystemActor is used by the scheduler and event consumers.
func SystemActor(requestID string) Actor {
	return Actor{SubjectID: "system", Role: RoleSystem, RequestID: requestID}
}

func (a Actor) operator() bool {
	return a.Role == RoleAdmin || a.Role == RoleFinance || a.Role == RoleSystem
}

type SubmitInvestmentInput struct {
	InvestmentID string
	OwnerID      string
	ReferrerID   string
	BranchID     string
	Principal    decimal.Decimal
	Variant      string
}

type RegisterParticipantInput struct {
	ParticipantID string
	UplineID      string
	BranchID      string
}

type InvestmentList struct {
	Items []domain.Investment
	Total int
}

type RewardList struct {
	Items []domain.RewardRecord
	Total int
}

type PlanVariantSummary struct {
	Variant             domain.ProductVariant `json:"variant"`
	Phases              []domain.Phase        `json:"phases"`
	HorizonMonths       int                   `json:"horizon_months"`
	TotalReturnFraction decimal.Decimal       `json:"total_return_fraction"`
	SamplePrincipal     decimal.Decimal       `json:"sample_principal"`
	SampleProfit        decimal.Decimal       `json:"sample_expected_profit"`
	SampleProfitCap     decimal.Decimal       `json:"sample_profit_cap"`
}

type PlanDescription struct {
	Plan     domain.Plan          `json:"plan"`
	Variants []PlanVariantSummary `json:"variants"`
}

type BatchRunResult struct {
	Run domain.BatchRun
}

type DistributionResult struct {
	Investment domain.Investment     `json:"investment"`
	Due        bool                  `json:"due"`
	Rewards    []domain.RewardRecord `json:"rewards"`
}

type Service struct {
	cfg          Config
	investments  ports.InvestmentRepository
	participants ports.ParticipantRepository
	rewards      ports.RewardRepository
	plans        ports.PlanRepository
	planCache    ports.PlanCache
	batchRuns    ports.BatchRunRepository
	claims       ports.RankClaimRepository
	eventDedup   ports.EventDedupRepository
	runLock      ports.RunLock
	metrics      ports.EngineMetrics
	logger       *slog.Logger
	clock        clock.Clock
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Investments  ports.InvestmentRepository
	Participants ports.ParticipantRepository
	Rewards      ports.RewardRepository
	Plans        ports.PlanRepository
	PlanCache    ports.PlanCache
	BatchRuns    ports.BatchRunRepository
	Claims       ports.RankClaimRepository
	EventDedup   ports.EventDedupRepository
	RunLock      ports.RunLock
	Metrics      ports.EngineMetrics
	Logger       *slog.Logger
	Clock        clock.Clock
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M42-Investment-Engine"
	}
	if cfg.MaturityInterval <= 0 {
		cfg.MaturityInterval = 30 * 24 * time.Hour
	}
	if cfg.BatchMaxAttempts <= 0 {
		cfg.BatchMaxAttempts = 3
	}
	if cfg.BatchRetryDelay <= 0 {
		cfg.BatchRetryDelay = 5 * time.Second
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 30 * time.Minute
	}
	if cfg.PlanCacheTTL <= 0 {
		cfg.PlanCacheTTL = 5 * time.Minute
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if !cfg.SamplePrincipal.IsPositive() {
		cfg.SamplePrincipal = decimal.NewFromInt(1_000_000)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	return &Service{
		cfg:          cfg,
		investments:  deps.Investments,
		participants: deps.Participants,
		rewards:      deps.Rewards,
		plans:        deps.Plans,
		planCache:    deps.PlanCache,
		batchRuns:    deps.BatchRuns,
		claims:       deps.Claims,
		eventDedup:   deps.EventDedup,
		runLock:      deps.RunLock,
		metrics:      metrics,
		logger:       logger,
		clock:        clk,
		nowFn:        func() time.Time { return clk.Now().UTC() },
	}
}

func (s *Service) Config() Config {
	return s.cfg
}
