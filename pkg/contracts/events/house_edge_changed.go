package events

type HouseEdgeChanged struct {
	OldEdge  uint64 `json:"old_edge"` // fração escala 1e18
	NewEdge  uint64 `json:"new_edge"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
