package events

type BetExpired struct {
	BetID    uint64 `json:"bet_id"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
