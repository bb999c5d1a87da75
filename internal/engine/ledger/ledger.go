// Package ledger é a máquina de estados das apostas: orquestra colocação,
// resolução, claim e expiração sobre o pool de liquidez, a fonte de
// aleatoriedade e o limitador de risco. Toda operação externa é atômica:
// ou aplica todas as suas mudanças de estado ou nenhuma.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radieske/wager-pool-poc/internal/engine/beacon"
	"github.com/radieske/wager-pool-poc/internal/engine/odds"
	"github.com/radieske/wager-pool-poc/internal/engine/pool"
	"github.com/radieske/wager-pool-poc/internal/engine/risk"
)

var (
	ErrInvalidAmount    = errors.New("bet amount below minimum")
	ErrInvalidOdds      = errors.New("target odds outside configured band")
	ErrExceedsRiskLimit = errors.New("bet amount above risk limit")
	ErrUnauthorized     = errors.New("caller is not the bet owner")
	ErrTooEarly         = errors.New("randomness not yet resolvable")
	ErrResultExpired    = errors.New("randomness horizon passed; bet awaits sweep")
	ErrAlreadySettled   = errors.New("bet already settled")
	ErrBetNotFound      = errors.New("bet not found")
	ErrEdgeAboveCap     = errors.New("house edge above configured cap")
)

// Treasury é o colaborador externo de custódia de colateral. Débito e
// crédito são primitivas tudo-ou-nada; transferências parciais não existem.
type Treasury interface {
	Debit(ctx context.Context, account string, amount uint64, ref string) error
	Credit(ctx context.Context, account string, amount uint64, ref string) error
}

// Randomness é a visão que o ledger tem do beacon.
type Randomness interface {
	Current() uint64
	HashAt(pos uint64) ([32]byte, error)
}

// Config reúne as constantes de validação do motor (frações em escala 1e18).
type Config struct {
	MinBet        uint64
	MinOdds       uint64
	MaxOdds       uint64
	HouseEdge     uint64 // edge inicial
	HouseEdgeCap  uint64 // teto duro para SetHouseEdge
	ExpiryHorizon uint64 // posições além da origem; deve exceder a janela do beacon
}

// Ledger possui os registros de aposta com exclusividade: toda mutação passa
// pelas operações daqui, guardadas por um único mutex, o equivalente da
// serialização global exigida pelo modelo de execução.
type Ledger struct {
	mu       sync.Mutex
	cfg      Config
	pool     *pool.Pool
	rng      Randomness
	treasury Treasury

	edge        uint64
	bets        map[uint64]*Bet
	nextID      uint64
	sweepCursor uint64 // menor id ainda não comprovadamente terminal

	clock func() time.Time
}

func New(cfg Config, p *pool.Pool, rng Randomness, t Treasury) (*Ledger, error) {
	if cfg.MinOdds == 0 || cfg.MaxOdds == 0 || cfg.MinOdds > cfg.MaxOdds {
		return nil, fmt.Errorf("invalid odds band [%d, %d]", cfg.MinOdds, cfg.MaxOdds)
	}
	if cfg.HouseEdge > cfg.HouseEdgeCap {
		return nil, fmt.Errorf("house edge %d above cap %d", cfg.HouseEdge, cfg.HouseEdgeCap)
	}
	if cfg.ExpiryHorizon == 0 {
		return nil, fmt.Errorf("expiry horizon must be positive")
	}
	return &Ledger{
		cfg:         cfg,
		pool:        p,
		rng:         rng,
		treasury:    t,
		edge:        cfg.HouseEdge,
		bets:        make(map[uint64]*Bet),
		nextID:      1,
		sweepCursor: 1,
		clock:       time.Now,
	}, nil
}

// WithClock troca o relógio para testes determinísticos.
func (l *Ledger) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// PlaceBet valida, cobra o colateral do apostador e registra a aposta
// PENDING na posição corrente do beacon. O colateral fica retido pelo ledger
// (fora do pool) até a liquidação. Cada falha de validação tem erro próprio
// e nenhuma deixa estado parcial.
func (l *Ledger) PlaceBet(ctx context.Context, owner string, amount, targetOdds uint64) (Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if owner == "" {
		return Bet{}, ErrUnauthorized
	}
	if amount == 0 || amount < l.cfg.MinBet {
		return Bet{}, ErrInvalidAmount
	}
	if targetOdds < l.cfg.MinOdds || targetOdds > l.cfg.MaxOdds {
		return Bet{}, ErrInvalidOdds
	}
	if amount > risk.MaxBet(l.pool.TotalAssets(), targetOdds, l.edge) {
		return Bet{}, ErrExceedsRiskLimit
	}

	id := l.nextID
	if err := l.treasury.Debit(ctx, owner, amount, fmt.Sprintf("bet-place:%d", id)); err != nil {
		return Bet{}, fmt.Errorf("treasury debit: %w", err)
	}

	b := &Bet{
		ID:          id,
		Owner:       owner,
		Amount:      amount,
		TargetOdds:  targetOdds,
		OriginBlock: l.rng.Current(),
		Status:      StatusPending,
		CreatedAt:   l.clock(),
	}
	l.bets[id] = b
	l.nextID++

	return *b, nil
}

// ComputeResult calcula (won, payout) de uma aposta sem mudar estado algum.
// Distingue "cedo demais" (ErrTooEarly) de "tarde demais" (ErrResultExpired):
// o chamador reage diferente: tenta de novo ou desiste para o sweep.
func (l *Ledger) ComputeResult(betID uint64) (won bool, payout uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return false, 0, ErrBetNotFound
	}
	return l.resolveLocked(b)
}

func (l *Ledger) resolveLocked(b *Bet) (bool, uint64, error) {
	// a aleatoriedade só se fixa na posição seguinte à origem: ninguém
	// (nem o apostador) conhece o resultado no momento do commit
	h, err := l.rng.HashAt(b.OriginBlock + 1)
	if err != nil {
		switch {
		case errors.Is(err, beacon.ErrNotFinalized):
			return false, 0, ErrTooEarly
		case errors.Is(err, beacon.ErrPruned):
			return false, 0, ErrResultExpired
		default:
			return false, 0, err
		}
	}

	raw := rawOutcome(b.ID, h)
	if !odds.IsWinner(raw, b.TargetOdds, l.edge) {
		return false, 0, nil
	}

	p, err := odds.Payout(b.Amount, b.TargetOdds)
	if err != nil {
		return false, 0, err
	}
	return true, p, nil
}

// rawOutcome dobra o id da aposta no hash do beacon: duas apostas com a
// mesma posição de origem ainda recebem resultados independentes.
func rawOutcome(betID uint64, h [32]byte) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], betID)

	d := sha256.New()
	d.Write(buf[:])
	d.Write(h[:])
	sum := d.Sum(nil)

	return binary.BigEndian.Uint64(sum[:8])
}

// ClaimResult é o desfecho de um Claim bem-sucedido.
type ClaimResult struct {
	Bet    Bet
	Won    bool
	Payout uint64
}

// Claim liquida uma aposta PENDING do próprio dono. Exatamente um dos
// caminhos executa: vitória (pool paga, dono recebe, CLAIMED) ou derrota
// (stake vira colateral do pool, LOST). A checagem de status faz um segundo
// Claim falhar com ErrAlreadySettled sem nenhuma mudança: idempotência por
// construção, não por rollback.
func (l *Ledger) Claim(ctx context.Context, betID uint64, caller string) (ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return ClaimResult{}, ErrBetNotFound
	}
	if b.Owner != caller {
		return ClaimResult{}, ErrUnauthorized
	}
	if b.Status != StatusPending {
		return ClaimResult{}, ErrAlreadySettled
	}

	won, payout, err := l.resolveLocked(b)
	if err != nil {
		// ErrResultExpired deixa a aposta PENDING: daqui em diante ela é
		// assunto do sweep, não de claim
		return ClaimResult{}, err
	}

	if won {
		b.Status = StatusWon // transitório, dentro deste claim
		if err := l.pool.SettleWin(b.Amount, payout); err != nil {
			b.Status = StatusPending
			return ClaimResult{}, err
		}
		ref := fmt.Sprintf("bet-claim:%d", betID)
		if err := l.treasury.Credit(ctx, b.Owner, payout, ref); err != nil {
			l.pool.RevertWin(b.Amount, payout)
			b.Status = StatusPending
			return ClaimResult{}, fmt.Errorf("treasury credit: %w", err)
		}
		b.Status = StatusClaimed
	} else {
		l.pool.CreditLoss(b.Amount)
		b.Status = StatusLost
		payout = 0
	}

	now := l.clock()
	b.SettledAt = &now

	return ClaimResult{Bet: *b, Won: won, Payout: payout}, nil
}

// SweepExpired varre até max apostas PENDING cuja origem ficou além do
// horizonte de expiração, creditando o stake ao pool e marcando EXPIRED.
// O cursor persistente avança apenas sobre o prefixo contíguo de registros
// terminais; como originBlock é não-decrescente no eixo de ids, a primeira
// aposta pendente ainda jovem encerra a varredura, tudo depois dela é mais
// novo. Chamadas repetidas fazem progresso monotônico sobre todo o backlog:
// nenhuma aposta é pulada para sempre nem processada duas vezes.
func (l *Ledger) SweepExpired(max int) []Bet {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.rng.Current()
	var swept []Bet

	for len(swept) < max {
		b, ok := l.bets[l.sweepCursor]
		if !ok {
			break // fim do backlog
		}

		if b.Status.terminal() {
			l.sweepCursor++
			continue
		}
		if current < b.OriginBlock+l.cfg.ExpiryHorizon {
			break // ainda reivindicável (ou jovem demais); ids maiores também
		}

		l.pool.CreditLoss(b.Amount)
		b.Status = StatusExpired
		now := l.clock()
		b.SettledAt = &now

		swept = append(swept, *b)
		l.sweepCursor++
	}

	return swept
}

// GetBet devolve uma cópia do registro.
func (l *Ledger) GetBet(betID uint64) (Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return Bet{}, ErrBetNotFound
	}
	return *b, nil
}

// MaxBet expõe o teto de aposta corrente para o target pedido.
func (l *Ledger) MaxBet(targetOdds uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return risk.MaxBet(l.pool.TotalAssets(), targetOdds, l.edge)
}

// HouseEdge devolve o edge corrente da casa.
func (l *Ledger) HouseEdge() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edge
}

// SetHouseEdge troca o edge, limitado pelo teto duro de configuração.
// A autorização do operador é responsabilidade da borda HTTP.
func (l *Ledger) SetHouseEdge(newEdge uint64) (oldEdge uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if newEdge > l.cfg.HouseEdgeCap {
		return 0, ErrEdgeAboveCap
	}
	oldEdge = l.edge
	l.edge = newEdge
	return oldEdge, nil
}
