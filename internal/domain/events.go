package domain

const CanonicalEventClassDomain = "domain"

const (
	EventSaleApproved           = "sale.approved"
	EventSaleRejected           = "sale.rejected"
	EventInvestmentActivated    = "investment.activated"
	EventInvestmentRejected     = "investment.rejected"
	EventInvestmentDistributed  = "investment.distributed"
	EventInvestmentCompleted    = "investment.completed"
	EventParticipantRankChanged = "participant.rank_changed"
	EventRankClaimDecided       = "participant.rank_claim_decided"
)
