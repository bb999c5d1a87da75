package indexer

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// DDL do leitor de eventos. O indexador é dono do seu schema e o cria na
// subida; o motor nunca lê daqui, é projeção para consultas externas.
const schema = `
CREATE TABLE IF NOT EXISTS bets (
	id           BIGINT PRIMARY KEY,
	owner        TEXT NOT NULL,
	amount       NUMERIC(20,0) NOT NULL,
	target_odds  NUMERIC(20,0) NOT NULL,
	origin_block BIGINT NOT NULL,
	status       TEXT NOT NULL,
	won          BOOLEAN,
	payout       NUMERIC(20,0),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bet_events (
	id         UUID PRIMARY KEY,
	bet_id     BIGINT,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS house_edge_history (
	id         UUID PRIMARY KEY,
	old_edge   NUMERIC(20,0) NOT NULL,
	new_edge   NUMERIC(20,0) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Store implementa a persistência do fluxo de eventos em Postgres
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Init cria as tabelas do indexador se ainda não existirem
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// InsertPlaced registra uma aposta nova; replays do tópico são ignorados
func (s *Store) InsertPlaced(ctx context.Context, betID uint64, owner string, amount, targetOdds, originBlock uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bets (id, owner, amount, target_odds, origin_block, status)
		VALUES ($1,$2,$3,$4,$5,'PENDING')
		ON CONFLICT (id) DO NOTHING`,
		int64(betID), owner, amount, targetOdds, int64(originBlock),
	)
	return err
}

// As projeções de status abaixo repetem a máquina de estados do motor no
// WHERE: os tópicos chegam por consumidores independentes, sem ordem entre
// si, e replays são normais. Cada UPDATE só anda o status para frente
// (PENDING -> WON|LOST -> CLAIMED); mensagens atrasadas ou repetidas viram
// no-ops em vez de regredir a linha.

// MarkResolved grava o desfecho calculado (won/payout) sem fechar o status
func (s *Store) MarkResolved(ctx context.Context, betID uint64, won bool, payout uint64) error {
	status := "LOST"
	if won {
		status = "WON"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bets SET won=$1, payout=$2, status=$3, updated_at=NOW()
		WHERE id=$4 AND status='PENDING'`,
		won, payout, status, int64(betID),
	)
	return err
}

// MarkClaimed fecha a aposta como paga
func (s *Store) MarkClaimed(ctx context.Context, betID uint64, payout uint64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bets SET status='CLAIMED', won=TRUE, payout=$1, updated_at=NOW()
		WHERE id=$2 AND status IN ('PENDING','WON')`,
		payout, int64(betID),
	)
	return err
}

// MarkExpired fecha a aposta varrida
func (s *Store) MarkExpired(ctx context.Context, betID uint64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bets SET status='EXPIRED', updated_at=NOW()
		WHERE id=$1 AND status='PENDING'`,
		int64(betID),
	)
	return err
}

// InsertEvent anexa o evento bruto ao histórico de auditoria
func (s *Store) InsertEvent(ctx context.Context, betID uint64, kind string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bet_events (id, bet_id, kind, payload) VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), int64(betID), kind, payload,
	)
	return err
}

// InsertEdgeChange registra a troca de edge da casa
func (s *Store) InsertEdgeChange(ctx context.Context, oldEdge, newEdge uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO house_edge_history (id, old_edge, new_edge) VALUES ($1,$2,$3)`,
		uuid.NewString(), oldEdge, newEdge,
	)
	return err
}
