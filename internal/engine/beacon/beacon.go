// Package beacon fornece a fonte de aleatoriedade commit-then-reveal do
// motor: um encadeamento de hashes por posição, com janela de histórico
// limitada. O hash de uma posição só existe depois que ela foi finalizada e
// deixa de existir quando a janela passa, e os dois casos são distinguíveis.
package beacon

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
)

var (
	// ErrNotFinalized: posição ainda não finalizada, resultado genuinamente
	// desconhecido por todos, tente de novo mais tarde.
	ErrNotFinalized = errors.New("beacon position not finalized yet")
	// ErrPruned: posição saiu da janela de histórico, o resultado nunca
	// mais poderá ser calculado.
	ErrPruned = errors.New("beacon position pruned from history window")
)

// Beacon mantém a cadeia de hashes finalizados das últimas `window` posições.
type Beacon struct {
	mu      sync.RWMutex
	window  uint64
	current uint64
	last    [32]byte
	hashes  map[uint64][32]byte
}

// New cria um beacon com a posição gênese 0 derivada da seed.
func New(seed []byte, window uint64) *Beacon {
	if window == 0 {
		window = 1
	}
	b := &Beacon{
		window: window,
		hashes: make(map[uint64][32]byte),
	}
	b.last = sha256.Sum256(seed)
	b.hashes[0] = b.last
	return b
}

// Current devolve a posição mais recente já finalizada.
func (b *Beacon) Current() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Advance finaliza a próxima posição encadeando o hash anterior com o número
// da posição, e poda a posição que saiu da janela.
func (b *Beacon) Advance() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.current)

	h := sha256.New()
	h.Write(b.last[:])
	h.Write(buf[:])
	copy(b.last[:], h.Sum(nil))

	b.hashes[b.current] = b.last
	if b.current >= b.window {
		delete(b.hashes, b.current-b.window)
	}

	return b.current
}

// HashAt devolve o hash da posição pedida, ErrNotFinalized se ela ainda não
// existe ou ErrPruned se já saiu da janela de histórico.
func (b *Beacon) HashAt(pos uint64) ([32]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if pos > b.current {
		return [32]byte{}, ErrNotFinalized
	}
	h, ok := b.hashes[pos]
	if !ok {
		return [32]byte{}, ErrPruned
	}
	return h, nil
}

// Window devolve o tamanho da janela de histórico.
func (b *Beacon) Window() uint64 {
	return b.window
}
