package ports

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

type EngineMetrics interface {
	InvestmentActivated(variant domain.ProductVariant)
	InvestmentCompleted(reason string)
	RewardRecorded(rewardType domain.RewardType, amount decimal.Decimal)
	RankAdvanced(rank int)
	BatchRunFinished(outcome domain.BatchOutcome, attempts, processed int, elapsed time.Duration)
	UplineCycleDetected()
}

type NoopMetrics struct{}

func (NoopMetrics) InvestmentActivated(domain.ProductVariant) {}

func (NoopMetrics) InvestmentCompleted(string) {}

func (NoopMetrics) RewardRecorded(domain.RewardType, decimal.Decimal) {}

func (NoopMetrics) RankAdvanced(int) {}

func (NoopMetrics) BatchRunFinished(domain.BatchOutcome, int, int, time.Duration) {}

func (NoopMetrics) UplineCycleDetected() {}
