package contracts

type SubmitInvestmentRequest struct {
	InvestmentID string `json:"investment_id"`
	OwnerID      string `json:"owner_id"`
	ReferrerID   string `json:"referrer_id"`
	BranchID     string `json:"branch_id"`
	Principal    string `json:"principal"`
	Variant      string `json:"variant"`
}

type RegisterParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
	UplineID      string `json:"upline_id"`
	BranchID      string `json:"branch_id"`
}

type ReassignUplineRequest struct {
	UplineID string `json:"upline_id"`
}

type SetParticipantStatusRequest struct {
	Status string `json:"status"`
}

type ClaimRankGiftRequest struct {
	RankID int `json:"rank_id"`
}

type DecideRankClaimRequest struct {
	Status string `json:"status"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
