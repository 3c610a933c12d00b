package domain

import (
	"fmt"
	"time"
)

type BatchOutcome string

const (
	BatchOutcomeSuccess BatchOutcome = "success"
	BatchOutcomeFailed  BatchOutcome = "failed"
	BatchOutcomeSkipped BatchOutcome = "skipped"
)

const DistributionJobName = "profit_distribution"

type BatchRun struct {
	RunID      string       `json:"run_id"`
	JobName    string       `json:"job_name"`
	Outcome    BatchOutcome `json:"outcome"`
	Attempts   int          `json:"attempts"`
	Processed  int          `json:"processed"`
	Active     int          `json:"active"`
	Details    string       `json:"details"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func BatchRunDetails(processed, active, attempt int) string {
	return fmt.Sprintf("processed %d due investments out of %d active (attempt %d)", processed, active, attempt)
}
