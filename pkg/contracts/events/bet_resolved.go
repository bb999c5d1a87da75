package events

type BetResolved struct {
	BetID    uint64 `json:"bet_id"`
	Won      bool   `json:"won"`
	Payout   uint64 `json:"payout"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
