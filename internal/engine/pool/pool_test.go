package pool

import (
	"errors"
	"testing"
)

func TestFirstStakerMintsOneToOne(t *testing.T) {
	p := New()

	shares, err := p.Stake("alice", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shares != 1000 {
		t.Fatalf("first stake minted %d shares; want 1000", shares)
	}

	assets, total := p.Snapshot()
	if assets != 1000 || total != 1000 {
		t.Fatalf("snapshot = (%d, %d); want (1000, 1000)", assets, total)
	}
}

func TestStakeRejectsZero(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake; got %v", err)
	}
}

func TestStakeUnstakeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		seed   uint64 // stake prévio de outro provedor
		amount uint64
	}{
		{name: "fresh pool", seed: 0, amount: 5000},
		{name: "existing liquidity", seed: 12345, amount: 777},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			if tc.seed > 0 {
				if _, err := p.Stake("seed", tc.seed); err != nil {
					t.Fatalf("seed stake: %v", err)
				}
			}

			shares, err := p.Stake("alice", tc.amount)
			if err != nil {
				t.Fatalf("stake: %v", err)
			}
			back, err := p.Unstake("alice", shares)
			if err != nil {
				t.Fatalf("unstake: %v", err)
			}

			// arredondamento inteiro pode custar no máximo 1 unidade
			if back > tc.amount || tc.amount-back > 1 {
				t.Fatalf("round trip returned %d for %d staked", back, tc.amount)
			}
		})
	}
}

func TestDonationDoesNotShortchangeNextStaker(t *testing.T) {
	p := New()

	if _, err := p.Stake("alice", 1000); err != nil {
		t.Fatalf("stake alice: %v", err)
	}

	// "doação" direta ao pool (mesmo caminho de uma perda liquidada):
	// dobra o preço da share sem emitir novas
	p.CreditLoss(1000)

	shares, err := p.Stake("bob", 1000)
	if err != nil {
		t.Fatalf("stake bob: %v", err)
	}
	if shares != 500 {
		t.Fatalf("bob minted %d shares; want 500 at doubled price", shares)
	}

	// bob resgata exatamente o que depositou: a doação não o prejudicou
	back, err := p.Unstake("bob", shares)
	if err != nil {
		t.Fatalf("unstake bob: %v", err)
	}
	if back != 1000 {
		t.Fatalf("bob redeemed %d; want 1000", back)
	}
}

func TestCreditLossRaisesSharePrice(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 1000); err != nil {
		t.Fatal(err)
	}

	p.CreditLoss(500)

	back, err := p.Unstake("alice", 1000)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if back != 1500 {
		t.Fatalf("alice redeemed %d; want 1500 after loss credit", back)
	}
}

func TestUnstakeValidations(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 1000); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Unstake("alice", 0); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("zero shares: expected ErrInsufficientShares; got %v", err)
	}
	if _, err := p.Unstake("alice", 2000); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("over-redeem: expected ErrInsufficientShares; got %v", err)
	}
	if _, err := p.Unstake("mallory", 10); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("unknown provider: expected ErrInsufficientShares; got %v", err)
	}
}

func TestDebitPayoutRuinCondition(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 100); err != nil {
		t.Fatal(err)
	}

	if err := p.DebitPayout(101); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity; got %v", err)
	}
	if got := p.TotalAssets(); got != 100 {
		t.Fatalf("failed debit must not touch assets; got %d", got)
	}

	if err := p.DebitPayout(100); err != nil {
		t.Fatalf("covered debit failed: %v", err)
	}
	if got := p.TotalAssets(); got != 0 {
		t.Fatalf("assets after full debit = %d; want 0", got)
	}
}

func TestStakeReopensDrainedPool(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 100); err != nil {
		t.Fatal(err)
	}

	// pagamento no limite exato zera o colateral com as shares ainda vivas
	if err := p.DebitPayout(100); err != nil {
		t.Fatalf("covered debit failed: %v", err)
	}
	if assets, shares := p.Snapshot(); assets != 0 || shares != 100 {
		t.Fatalf("snapshot = (%d, %d); want (0, 100)", assets, shares)
	}

	// o pool exaurido volta a aceitar liquidez com emissão 1:1
	shares, err := p.Stake("bob", 1000)
	if err != nil {
		t.Fatalf("stake into drained pool: %v", err)
	}
	if shares != 1000 {
		t.Fatalf("bob minted %d shares; want 1000 at 1:1 reopen", shares)
	}
	if assets, total := p.Snapshot(); assets != 1000 || total != 1100 {
		t.Fatalf("snapshot = (%d, %d); want (1000, 1100)", assets, total)
	}

	// as shares antigas voltam a ser resgatáveis ao novo preço
	back, err := p.Unstake("alice", 100)
	if err != nil {
		t.Fatalf("unstake alice: %v", err)
	}
	if back != 1000*100/1100 {
		t.Fatalf("alice redeemed %d; want %d", back, 1000*100/1100)
	}
}

func TestRevertUnstakeRestoresExactShares(t *testing.T) {
	p := New()
	if _, err := p.Stake("seed", 12345); err != nil {
		t.Fatal(err)
	}
	minted, err := p.Stake("alice", 777)
	if err != nil {
		t.Fatal(err)
	}

	assetsBefore, sharesBefore := p.Snapshot()

	assets, err := p.Unstake("alice", minted)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	p.RevertUnstake("alice", minted, assets)

	// saldo de shares idêntico ao de antes, sem drift de arredondamento
	if got := p.SharesOf("alice"); got != minted {
		t.Fatalf("alice shares after revert = %d; want %d", got, minted)
	}
	if a, s := p.Snapshot(); a != assetsBefore || s != sharesBefore {
		t.Fatalf("snapshot after revert = (%d, %d); want (%d, %d)", a, s, assetsBefore, sharesBefore)
	}
}

func TestRevertUnstakeAfterPoolEmptied(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 1000); err != nil {
		t.Fatal(err)
	}

	// resgate total esvazia o pool; o estorno recompõe o estado original
	assets, err := p.Unstake("alice", 1000)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if a, s := p.Snapshot(); a != 0 || s != 0 {
		t.Fatalf("snapshot after full unstake = (%d, %d); want (0, 0)", a, s)
	}

	p.RevertUnstake("alice", 1000, assets)
	if got := p.SharesOf("alice"); got != 1000 {
		t.Fatalf("alice shares after revert = %d; want 1000", got)
	}
	if a, s := p.Snapshot(); a != 1000 || s != 1000 {
		t.Fatalf("snapshot after revert = (%d, %d); want (1000, 1000)", a, s)
	}
}

func TestSettleWinAtomicity(t *testing.T) {
	p := New()
	if _, err := p.Stake("alice", 1000); err != nil {
		t.Fatal(err)
	}

	// stake 100 entra, payout 200 sai: delta -100
	if err := p.SettleWin(100, 200); err != nil {
		t.Fatalf("settle win: %v", err)
	}
	if got := p.TotalAssets(); got != 900 {
		t.Fatalf("assets after win = %d; want 900", got)
	}

	// pagamento acima de colateral+stake falha sem efeito parcial
	if err := p.SettleWin(50, 10_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity; got %v", err)
	}
	if got := p.TotalAssets(); got != 900 {
		t.Fatalf("failed settle must not touch assets; got %d", got)
	}

	// revert devolve o estado anterior ao SettleWin
	p.RevertWin(100, 200)
	if got := p.TotalAssets(); got != 1000 {
		t.Fatalf("assets after revert = %d; want 1000", got)
	}
}
