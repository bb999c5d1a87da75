// Package pool implementa o cofre de liquidez compartilhada com
// contabilidade por shares proporcionais: stakers recebem uma fração do
// colateral total, perdas liquidadas elevam o preço da share e pagamentos de
// apostas vencedoras saem do colateral comum.
package pool

import (
	"errors"
	"sync"

	"github.com/radieske/wager-pool-poc/internal/engine/fpmath"
)

var (
	ErrInvalidStake          = errors.New("stake must deposit assets and mint shares")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// Pool guarda o par (totalAssets, totalShares) e o saldo de shares por
// provedor. Todas as operações públicas completam leitura-e-escrita dentro de
// uma única seção crítica.
type Pool struct {
	mu          sync.Mutex
	totalAssets uint64
	totalShares uint64
	holders     map[string]uint64
}

func New() *Pool {
	return &Pool{holders: make(map[string]uint64)}
}

// Stake deposita colateral e emite shares proporcionais. O cálculo usa o
// saldo capturado ANTES de registrar o depósito: doar colateral direto ao
// pool imediatamente antes de stakear não infla a contagem de shares de quem
// deposita em seguida. Primeiro staker recebe 1:1; um pool exaurido
// (totalAssets == 0 com shares emitidas) também volta a aceitar depósitos 1:1.
func (p *Pool) Stake(provider string, assets uint64) (uint64, error) {
	if assets == 0 {
		return 0, ErrInvalidStake
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var shares uint64
	if p.totalShares == 0 || p.totalAssets == 0 {
		// pool vazio, ou exaurido por pagamentos com shares ainda emitidas:
		// sem colateral não há preço definido, então o depósito reabre o
		// pool com emissão 1:1 e as shares antigas voltam a ter lastro
		shares = assets
	} else {
		s, err := fpmath.MulDiv(assets, p.totalShares, p.totalAssets)
		if err != nil {
			return 0, ErrInvalidStake
		}
		shares = s
	}
	if shares == 0 {
		return 0, ErrInvalidStake
	}

	p.totalAssets += assets
	p.totalShares += shares
	p.holders[provider] += shares
	return shares, nil
}

// Unstake queima shares e devolve colateral ao preço corrente. Queima e
// débito acontecem juntos, sem efeito parcial.
func (p *Pool) Unstake(provider string, shares uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if shares == 0 || p.holders[provider] < shares {
		return 0, ErrInsufficientShares
	}

	assets, err := fpmath.MulDiv(shares, p.totalAssets, p.totalShares)
	if err != nil {
		return 0, ErrInsufficientLiquidity
	}
	if assets > p.totalAssets {
		// shares <= totalShares garante que isso nunca dispara
		return 0, ErrInsufficientLiquidity
	}

	p.totalAssets -= assets
	p.totalShares -= shares
	p.holders[provider] -= shares
	if p.holders[provider] == 0 {
		delete(p.holders, provider)
	}
	return assets, nil
}

// RevertUnstake desfaz um Unstake quando a transferência externa do colateral
// falhou logo em seguida: devolve exatamente as shares queimadas e o
// colateral debitado, sem passar pelo preço corrente. Só é válido
// imediatamente após o Unstake correspondente.
func (p *Pool) RevertUnstake(provider string, shares, assets uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAssets += assets
	p.totalShares += shares
	p.holders[provider] += shares
}

// CreditLoss incorpora um stake perdido (ou varrido) ao colateral comum sem
// emitir shares; é o único caminho que sobe o preço da share.
func (p *Pool) CreditLoss(amount uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAssets += amount
}

// DebitPayout retira colateral para pagar uma aposta vencedora. Falha com
// ErrInsufficientLiquidity quando o pool não cobre, a condição de ruína que o
// limitador de risco existe para tornar rara, mas que precisa ser explícita:
// a aposta fica pendente e volta a ser pagável quando entrar liquidez.
func (p *Pool) DebitPayout(amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.debitPayoutLocked(amount)
}

func (p *Pool) debitPayoutLocked(amount uint64) error {
	if amount > p.totalAssets {
		return ErrInsufficientLiquidity
	}
	p.totalAssets -= amount
	return nil
}

// SettleWin liquida uma aposta vencedora de forma atômica: o stake retido
// entra no colateral e o pagamento sai, numa única seção crítica. Falha sem
// nenhum efeito se stake + colateral não cobrirem o pagamento.
func (p *Pool) SettleWin(stake, payout uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalAssets += stake
	if err := p.debitPayoutLocked(payout); err != nil {
		p.totalAssets -= stake
		return err
	}
	return nil
}

// RevertWin desfaz um SettleWin quando a transferência externa do pagamento
// falhou logo em seguida; só é válido imediatamente após o SettleWin
// correspondente.
func (p *Pool) RevertWin(stake, payout uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAssets += payout
	p.totalAssets -= stake
}

// TotalAssets devolve o colateral total corrente.
func (p *Pool) TotalAssets() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalAssets
}

// SharesOf devolve o saldo de shares de um provedor.
func (p *Pool) SharesOf(provider string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holders[provider]
}

// Snapshot devolve o par (totalAssets, totalShares) de forma consistente.
func (p *Pool) Snapshot() (assets, shares uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalAssets, p.totalShares
}
