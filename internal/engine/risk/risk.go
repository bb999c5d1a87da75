// Package risk limita o tamanho de aposta via critério de Kelly: o teto é
// proporcional ao saldo do pool e ao edge, e inversamente proporcional ao
// multiplicador de pagamento, de modo que a ruína do pool fique
// estatisticamente desprezível.
package risk

import (
	"math/big"

	"github.com/radieske/wager-pool-poc/internal/engine/fpmath"
)

// minDenominator é o piso do denominador (multiplier - Scale). Abaixo dele o
// target está colado em 100% e o teto explodiria; nesse regime a aposta é
// simplesmente rejeitada (teto zero) em vez de dividir por quase-zero.
const minDenominator = fpmath.Scale / 100

var (
	scaleBig   = new(big.Int).SetUint64(fpmath.Scale)
	scaleSqBig = new(big.Int).Mul(scaleBig, scaleBig)
)

// MaxBet devolve o maior stake aceitável para o saldo atual do pool:
// poolBalance * edge / (multiplier - Scale), com multiplier = Scale²/target.
// Pool vazio ou target fora de alcance devolvem 0.
func MaxBet(poolBalance, target, edge uint64) uint64 {
	if poolBalance == 0 || target == 0 || edge == 0 {
		return 0
	}

	// multiplier = Scale²/target não cabe em uint64 para targets pequenos;
	// toda a conta fica em big.Int.
	mult := new(big.Int).Quo(scaleSqBig, new(big.Int).SetUint64(target))
	den := mult.Sub(mult, scaleBig)

	if den.Cmp(new(big.Int).SetUint64(minDenominator)) < 0 {
		return 0
	}

	num := new(big.Int).Mul(new(big.Int).SetUint64(poolBalance), new(big.Int).SetUint64(edge))
	out := num.Quo(num, den)

	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}
