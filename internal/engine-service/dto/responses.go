package dto

type PlaceBetResponse struct {
	BetID       uint64 `json:"bet_id"`
	OriginBlock uint64 `json:"origin_block"`
	Status      string `json:"status"`
}

type BetResponse struct {
	BetID       uint64 `json:"bet_id"`
	Owner       string `json:"owner"`
	Amount      uint64 `json:"amount"`
	TargetOdds  uint64 `json:"target_odds"`
	OriginBlock uint64 `json:"origin_block"`
	Status      string `json:"status"`
}

type ClaimResponse struct {
	BetID  uint64 `json:"bet_id"`
	Won    bool   `json:"won"`
	Payout uint64 `json:"payout"`
	Status string `json:"status"`
}

type ResultResponse struct {
	BetID  uint64 `json:"bet_id"`
	Won    bool   `json:"won"`
	Payout uint64 `json:"payout"`
}

type StakeResponse struct {
	Provider string `json:"provider"`
	Shares   uint64 `json:"shares"`
}

type UnstakeResponse struct {
	Provider string `json:"provider"`
	Assets   uint64 `json:"assets"`
}

type PoolResponse struct {
	TotalAssets uint64 `json:"total_assets"`
	TotalShares uint64 `json:"total_shares"`
}

type MaxBetResponse struct {
	TargetOdds uint64 `json:"target_odds"`
	MaxBet     uint64 `json:"max_bet"`
}

type HouseEdgeResponse struct {
	Edge uint64 `json:"edge"`
}

type SweepResponse struct {
	Swept int `json:"swept"`
}
