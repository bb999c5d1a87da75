package topics

const (
	// Ciclo de vida das apostas
	BetPlaced   = "bet_placed"
	BetResolved = "bet_resolved"
	BetClaimed  = "bet_claimed"
	BetExpired  = "bet_expired"

	// Administração
	HouseEdgeChanged = "house_edge_changed"

	// DLQ do indexador
	BetEventsDLQ = "bet_events_dlq"
)
