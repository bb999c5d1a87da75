package fpmath

import (
	"errors"
	"math/big"
)

// Scale é a base de ponto fixo usada em odds, edge e multiplicadores (1e18).
const Scale uint64 = 1_000_000_000_000_000_000

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("fixed-point overflow")
)

// MulDiv calcula floor(a*b/c) com produto intermediário largo (big.Int),
// multiplicando antes de dividir para não perder precisão.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}

	p := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	p.Quo(p, new(big.Int).SetUint64(c))

	if !p.IsUint64() {
		return 0, ErrOverflow
	}
	return p.Uint64(), nil
}
