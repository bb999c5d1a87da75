package ledger

import "time"

// Status de uma aposta. Transições são monotônicas e de mão única:
// PENDING -> {WON, LOST, CLAIMED, EXPIRED}; WON só existe dentro de um único
// claim antes de virar CLAIMED; LOST e EXPIRED são terminais.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
	StatusClaimed Status = "CLAIMED"
	StatusExpired Status = "EXPIRED"
)

// terminal informa se o status encerra o ciclo de vida da aposta.
func (s Status) terminal() bool {
	return s == StatusLost || s == StatusClaimed || s == StatusExpired
}

// Bet é o registro de aposta mantido pelo ledger. Registros nunca são
// removidos: terminais ficam retidos para rejeição idempotente e auditoria.
type Bet struct {
	ID          uint64
	Owner       string
	Amount      uint64 // colateral, > 0
	TargetOdds  uint64 // fração escala 1e18 dentro da banda configurada
	OriginBlock uint64 // posição do beacon na criação, imutável
	Status      Status
	CreatedAt   time.Time
	SettledAt   *time.Time
}
