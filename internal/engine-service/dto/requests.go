package dto

type PlaceBetRequest struct {
	Owner      string `json:"owner"`
	Amount     uint64 `json:"amount"`
	TargetOdds uint64 `json:"target_odds"` // fração escala 1e18
}

type ClaimRequest struct {
	Owner string `json:"owner"`
}

type StakeRequest struct {
	Provider string `json:"provider"`
	Assets   uint64 `json:"assets"`
}

type UnstakeRequest struct {
	Provider string `json:"provider"`
	Shares   uint64 `json:"shares"`
}

type SetHouseEdgeRequest struct {
	Edge uint64 `json:"edge"` // fração escala 1e18
}

type SweepRequest struct {
	Max int `json:"max"`
}
