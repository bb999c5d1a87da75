package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/radieske/wager-pool-poc/internal/engine/beacon"
	"github.com/radieske/wager-pool-poc/internal/engine/fpmath"
	"github.com/radieske/wager-pool-poc/internal/engine/pool"
)

type transfer struct {
	account string
	amount  uint64
	ref     string
}

// fakeTreasury registra transferências e permite injetar falhas.
type fakeTreasury struct {
	debits     []transfer
	credits    []transfer
	failDebit  error
	failCredit error
}

func (f *fakeTreasury) Debit(_ context.Context, account string, amount uint64, ref string) error {
	if f.failDebit != nil {
		return f.failDebit
	}
	f.debits = append(f.debits, transfer{account, amount, ref})
	return nil
}

func (f *fakeTreasury) Credit(_ context.Context, account string, amount uint64, ref string) error {
	if f.failCredit != nil {
		return f.failCredit
	}
	f.credits = append(f.credits, transfer{account, amount, ref})
	return nil
}

func testConfig(horizon uint64) Config {
	return Config{
		MinBet:        10,
		MinOdds:       fpmath.Scale / 100,
		MaxOdds:       98 * (fpmath.Scale / 100),
		HouseEdge:     fpmath.Scale / 100,
		HouseEdgeCap:  fpmath.Scale / 10,
		ExpiryHorizon: horizon,
	}
}

func newTestLedger(t *testing.T, window, horizon, poolSeed uint64) (*Ledger, *pool.Pool, *beacon.Beacon, *fakeTreasury) {
	t.Helper()

	p := pool.New()
	if poolSeed > 0 {
		if _, err := p.Stake("lp-seed", poolSeed); err != nil {
			t.Fatalf("seed pool: %v", err)
		}
	}
	b := beacon.New([]byte(t.Name()), window)
	tr := &fakeTreasury{}

	l, err := New(testConfig(horizon), p, b, tr)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l, p, b, tr
}

func TestPlaceBetValidation(t *testing.T) {
	even := fpmath.Scale / 2

	cases := []struct {
		name    string
		owner   string
		amount  uint64
		target  uint64
		wantErr error
	}{
		{name: "zero amount", owner: "alice", amount: 0, target: even, wantErr: ErrInvalidAmount},
		{name: "below minimum", owner: "alice", amount: 5, target: even, wantErr: ErrInvalidAmount},
		{name: "odds below band", owner: "alice", amount: 100, target: fpmath.Scale / 1000, wantErr: ErrInvalidOdds},
		{name: "odds above band", owner: "alice", amount: 100, target: 99 * (fpmath.Scale / 100), wantErr: ErrInvalidOdds},
		// pool 10000, edge 1%, odds 50%: teto exato em 100
		{name: "at the risk limit", owner: "alice", amount: 100, target: even},
		{name: "above the risk limit", owner: "alice", amount: 200, target: even, wantErr: ErrExceedsRiskLimit},
		{name: "missing owner", owner: "", amount: 100, target: even, wantErr: ErrUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, _, tr := newTestLedger(t, 16, 20, 10_000)

			got, err := l.PlaceBet(context.Background(), tc.owner, tc.amount, tc.target)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v; got %v", tc.wantErr, err)
				}
				if len(tr.debits) != 0 {
					t.Fatal("failed placement must not move collateral")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != 1 || got.Status != StatusPending {
				t.Fatalf("bet = %+v; want id 1 PENDING", got)
			}
			if len(tr.debits) != 1 || tr.debits[0].amount != tc.amount {
				t.Fatalf("expected one debit of %d; got %+v", tc.amount, tr.debits)
			}
		})
	}
}

func TestPlaceBetTreasuryFailureLeavesNoRecord(t *testing.T) {
	l, _, _, tr := newTestLedger(t, 16, 20, 10_000)
	tr.failDebit = errors.New("treasury offline")

	if _, err := l.PlaceBet(context.Background(), "alice", 100, fpmath.Scale/2); err == nil {
		t.Fatal("expected error when treasury debit fails")
	}
	if _, err := l.GetBet(1); !errors.Is(err, ErrBetNotFound) {
		t.Fatalf("no record should exist; got %v", err)
	}

	// o próximo placement não pode reutilizar nem queimar o id
	tr.failDebit = nil
	b, err := l.PlaceBet(context.Background(), "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatalf("place after recovery: %v", err)
	}
	if b.ID != 1 {
		t.Fatalf("first successful bet got id %d; want 1", b.ID)
	}
}

func TestMonotonicIDsAndOrigin(t *testing.T) {
	l, _, bc, _ := newTestLedger(t, 16, 20, 1_000_000)
	ctx := context.Background()

	b1, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := l.PlaceBet(ctx, "bob", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	if b1.ID != 1 || b2.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", b1.ID, b2.ID)
	}
	if b1.OriginBlock != bc.Current() || b2.OriginBlock != bc.Current() {
		t.Fatal("origin must be the beacon position at creation")
	}

	bc.Advance()
	b3, err := l.PlaceBet(ctx, "carol", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	if b3.OriginBlock != b1.OriginBlock+1 {
		t.Fatalf("origin = %d; want %d", b3.OriginBlock, b1.OriginBlock+1)
	}
}

func TestClaimTooEarly(t *testing.T) {
	l, _, _, _ := newTestLedger(t, 16, 20, 10_000)
	ctx := context.Background()

	b, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}

	// mesma posição da colocação: resultado ainda não existe
	if _, err := l.Claim(ctx, b.ID, "alice"); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly; got %v", err)
	}
	if _, _, err := l.ComputeResult(b.ID); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("compute: expected ErrTooEarly; got %v", err)
	}

	got, err := l.GetBet(b.ID)
	if err != nil || got.Status != StatusPending {
		t.Fatalf("bet must stay PENDING; got %+v %v", got, err)
	}
}

func TestClaimSettlesExactlyOnce(t *testing.T) {
	l, p, bc, tr := newTestLedger(t, 64, 70, 1_000_000)
	ctx := context.Background()

	b, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	bc.Advance()

	won, payout, err := l.ComputeResult(b.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	assetsBefore := p.TotalAssets()
	res, err := l.Claim(ctx, b.ID, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if res.Won != won {
		t.Fatalf("claim outcome %v disagrees with computeResult %v", res.Won, won)
	}
	if won {
		if res.Bet.Status != StatusClaimed || res.Payout != payout {
			t.Fatalf("win settled as %+v", res)
		}
		if len(tr.credits) != 1 || tr.credits[0].amount != payout {
			t.Fatalf("winner must receive the payout once; got %+v", tr.credits)
		}
		if p.TotalAssets() != assetsBefore+b.Amount-payout {
			t.Fatalf("pool assets = %d; want %d", p.TotalAssets(), assetsBefore+b.Amount-payout)
		}
	} else {
		if res.Bet.Status != StatusLost || res.Payout != 0 {
			t.Fatalf("loss settled as %+v", res)
		}
		if len(tr.credits) != 0 {
			t.Fatalf("loser must receive nothing; got %+v", tr.credits)
		}
		if p.TotalAssets() != assetsBefore+b.Amount {
			t.Fatalf("pool assets = %d; want %d", p.TotalAssets(), assetsBefore+b.Amount)
		}
	}

	// segundo claim: rejeição idempotente, saldo intocado
	assetsAfter := p.TotalAssets()
	creditsAfter := len(tr.credits)
	if _, err := l.Claim(ctx, b.ID, "alice"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled; got %v", err)
	}
	if p.TotalAssets() != assetsAfter || len(tr.credits) != creditsAfter {
		t.Fatal("repeated claim must not move any balance")
	}
}

func TestClaimUnauthorized(t *testing.T) {
	l, _, bc, _ := newTestLedger(t, 16, 20, 10_000)
	ctx := context.Background()

	b, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	bc.Advance()

	if _, err := l.Claim(ctx, b.ID, "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized; got %v", err)
	}
	if _, err := l.Claim(ctx, 999, "alice"); !errors.Is(err, ErrBetNotFound) {
		t.Fatalf("expected ErrBetNotFound; got %v", err)
	}
}

func TestClaimAfterHorizonIsExpired(t *testing.T) {
	l, _, bc, _ := newTestLedger(t, 8, 10, 10_000)
	ctx := context.Background()

	b, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}

	// a janela do beacon (8) passa sem claim: o hash da origem+1 foi podado
	for i := 0; i < 12; i++ {
		bc.Advance()
	}

	if _, err := l.Claim(ctx, b.ID, "alice"); !errors.Is(err, ErrResultExpired) {
		t.Fatalf("expected ErrResultExpired; got %v", err)
	}

	// a aposta fica PENDING, à espera do sweep; não some num limbo
	got, _ := l.GetBet(b.ID)
	if got.Status != StatusPending {
		t.Fatalf("bet status = %s; want PENDING until swept", got.Status)
	}

	swept := l.SweepExpired(10)
	if len(swept) != 1 || swept[0].ID != b.ID || swept[0].Status != StatusExpired {
		t.Fatalf("sweep result = %+v; want bet %d EXPIRED", swept, b.ID)
	}
}

func TestClaimRollsBackWhenPayoutTransferFails(t *testing.T) {
	l, p, bc, tr := newTestLedger(t, 512, 520, 1_000_000)
	ctx := context.Background()

	// procura uma aposta vencedora; com odds de ~49.5% ela aparece rápido
	var winID uint64
	for i := 0; i < 200 && winID == 0; i++ {
		b, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
		if err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
		bc.Advance()
		won, _, err := l.ComputeResult(b.ID)
		if err != nil {
			t.Fatalf("compute %d: %v", b.ID, err)
		}
		if won {
			winID = b.ID
		}
	}
	if winID == 0 {
		t.Fatal("no winning bet found in 200 trials")
	}

	assetsBefore := p.TotalAssets()
	tr.failCredit = errors.New("treasury offline")

	if _, err := l.Claim(ctx, winID, "alice"); err == nil {
		t.Fatal("expected claim to fail when the payout transfer fails")
	}
	if p.TotalAssets() != assetsBefore {
		t.Fatalf("pool assets = %d; want %d untouched after rollback", p.TotalAssets(), assetsBefore)
	}
	got, _ := l.GetBet(winID)
	if got.Status != StatusPending {
		t.Fatalf("bet status = %s; want PENDING after rollback", got.Status)
	}

	// com a tesouraria de volta, o claim conclui normalmente
	tr.failCredit = nil
	res, err := l.Claim(ctx, winID, "alice")
	if err != nil {
		t.Fatalf("claim after recovery: %v", err)
	}
	if !res.Won || res.Bet.Status != StatusClaimed {
		t.Fatalf("expected a claimed win; got %+v", res)
	}
}

func TestSweepExactlyOnceWithCursorProgress(t *testing.T) {
	l, p, bc, _ := newTestLedger(t, 8, 10, 100_000)
	ctx := context.Background()

	b1, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := l.PlaceBet(ctx, "bob", 200, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}
	bc.Advance()
	b3, err := l.PlaceBet(ctx, "carol", 300, fpmath.Scale/2)
	if err != nil {
		t.Fatal(err)
	}

	// b2 é liquidada antes de expirar
	if _, err := l.Claim(ctx, b2.ID, "bob"); err != nil {
		t.Fatalf("claim b2: %v", err)
	}

	// passa o horizonte de todas
	for i := 0; i < 15; i++ {
		bc.Advance()
	}

	assetsBefore := p.TotalAssets()

	// lote 1: varre só b1
	swept := l.SweepExpired(1)
	if len(swept) != 1 || swept[0].ID != b1.ID {
		t.Fatalf("first batch = %+v; want only bet %d", swept, b1.ID)
	}

	// lote 2: pula a b2 (terminal) e varre b3
	swept = l.SweepExpired(1)
	if len(swept) != 1 || swept[0].ID != b3.ID {
		t.Fatalf("second batch = %+v; want only bet %d", swept, b3.ID)
	}

	// nada mais a varrer; nenhum registro é revisitado
	if swept := l.SweepExpired(10); len(swept) != 0 {
		t.Fatalf("third batch = %+v; want empty", swept)
	}

	// pool recebeu exatamente os stakes abandonados, uma única vez
	want := assetsBefore + b1.Amount + b3.Amount
	if p.TotalAssets() != want {
		t.Fatalf("pool assets = %d; want %d", p.TotalAssets(), want)
	}

	for _, id := range []uint64{b1.ID, b3.ID} {
		got, _ := l.GetBet(id)
		if got.Status != StatusExpired {
			t.Fatalf("bet %d status = %s; want EXPIRED", id, got.Status)
		}
	}
}

func TestSweepStopsAtClaimableBets(t *testing.T) {
	l, _, bc, _ := newTestLedger(t, 8, 10, 100_000)
	ctx := context.Background()

	if _, err := l.PlaceBet(ctx, "alice", 100, fpmath.Scale/2); err != nil {
		t.Fatal(err)
	}
	bc.Advance()

	// dentro do horizonte: nada a varrer
	if swept := l.SweepExpired(10); len(swept) != 0 {
		t.Fatalf("young bet swept: %+v", swept)
	}
}

func TestSetHouseEdgeCeiling(t *testing.T) {
	l, _, _, _ := newTestLedger(t, 16, 20, 10_000)

	// 2% aceito
	old, err := l.SetHouseEdge(2 * (fpmath.Scale / 100))
	if err != nil {
		t.Fatalf("2%% rejected: %v", err)
	}
	if old != fpmath.Scale/100 {
		t.Fatalf("old edge = %d; want initial 1%%", old)
	}

	// 15% acima do teto de 10%
	if _, err := l.SetHouseEdge(15 * (fpmath.Scale / 100)); !errors.Is(err, ErrEdgeAboveCap) {
		t.Fatalf("expected ErrEdgeAboveCap; got %v", err)
	}
	if l.HouseEdge() != 2*(fpmath.Scale/100) {
		t.Fatal("rejected change must not alter the edge")
	}
}

func TestFairnessConvergesToAdjustedOdds(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical simulation")
	}

	l, _, bc, _ := newTestLedger(t, 16, 20, 10_000_000)
	ctx := context.Background()

	const trials = 4000
	target := fpmath.Scale / 2
	wins := 0

	for i := 0; i < trials; i++ {
		b, err := l.PlaceBet(ctx, "alice", 100, target)
		if err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
		bc.Advance()
		res, err := l.Claim(ctx, b.ID, "alice")
		if err != nil {
			t.Fatalf("claim %d: %v", b.ID, err)
		}
		if res.Won {
			wins++
		}
	}

	// taxa empírica deve convergir para as odds ajustadas (49.5%)
	got := float64(wins) / float64(trials)
	want := 0.495
	if math.Abs(got-want) > 0.05 {
		t.Fatalf("empirical win rate %.4f; want %.3f ± 0.05", got, want)
	}
}
