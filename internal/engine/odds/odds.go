// Package odds concentra a matemática pura de probabilidade e pagamento.
// Todas as frações usam a escala fixa 1e18 de fpmath.
package odds

import (
	"errors"
	"math/big"

	"github.com/radieske/wager-pool-poc/internal/engine/fpmath"
)

var ErrZeroOdds = errors.New("division by zero odds")

// AdjustedOdds reduz a probabilidade nominal pedida pelo apostador com o
// edge da casa: target * (Scale - edge) / Scale. O resultado é sempre
// estritamente menor que target para edge > 0.
func AdjustedOdds(target, edge uint64) uint64 {
	if edge >= fpmath.Scale {
		return 0
	}
	adj, err := fpmath.MulDiv(target, fpmath.Scale-edge, fpmath.Scale)
	if err != nil {
		// target e fator cabem em 1e18; só chega aqui com entradas fora da banda
		return 0
	}
	return adj
}

// Threshold mapeia as odds ajustadas para o domínio uint64 completo do hash
// (adjusted * 2^64 / Scale), usado na comparação com o resultado bruto.
func Threshold(target, edge uint64) uint64 {
	adj := AdjustedOdds(target, edge)

	t := new(big.Int).Lsh(new(big.Int).SetUint64(adj), 64)
	t.Quo(t, new(big.Int).SetUint64(fpmath.Scale))
	if !t.IsUint64() {
		// adjusted >= Scale nunca acontece com entradas validadas; satura
		return ^uint64(0)
	}
	return t.Uint64()
}

// IsWinner decide a aposta: vence quando o resultado bruto (uniforme em
// [0, 2^64)) fica abaixo do threshold. raw==0 sempre vence para qualquer
// threshold positivo; raw==MaxUint64 nunca vence.
func IsWinner(raw, target, edge uint64) bool {
	return raw < Threshold(target, edge)
}

// Payout calcula o retorno total de uma aposta vencedora:
// amount * Scale / target. Odds menores pagam multiplicadores maiores.
// target == 0 já é barrado na validação de entrada.
func Payout(amount, target uint64) (uint64, error) {
	if target == 0 {
		return 0, ErrZeroOdds
	}
	p, err := fpmath.MulDiv(amount, fpmath.Scale, target)
	if err != nil {
		return 0, err
	}
	return p, nil
}
