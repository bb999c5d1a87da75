package events

type BetPlaced struct {
	BetID       uint64 `json:"bet_id"`
	Owner       string `json:"owner"`
	Amount      uint64 `json:"amount"`
	TargetOdds  uint64 `json:"target_odds"` // fração escala 1e18
	OriginBlock uint64 `json:"origin_block"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
