package events

type BetClaimed struct {
	BetID    uint64 `json:"bet_id"`
	Owner    string `json:"owner"`
	Payout   uint64 `json:"payout"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
