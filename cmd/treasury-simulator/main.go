package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool-poc/internal/shared/config"
	"github.com/radieske/wager-pool-poc/internal/shared/logger"
	"github.com/radieske/wager-pool-poc/internal/shared/metrics"
)

// Saldo inicial creditado na primeira vez que uma conta aparece.
const seedBalance uint64 = 1_000_000

var (
	errInsufficientFunds = errors.New("insufficient funds")
	errDuplicateRef      = errors.New("duplicate ref")
)

// treasury guarda saldos em memória e deduplica transferências por ref.
// Simula o serviço de custódia que o motor debita e credita.
type treasury struct {
	mu       sync.Mutex
	balances map[string]uint64
	seenRefs map[string]bool
}

type transferReq struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Ref     string `json:"ref"`
}

func newTreasury() *treasury {
	return &treasury{
		balances: make(map[string]uint64),
		seenRefs: make(map[string]bool),
	}
}

// accountLocked materializa a conta com saldo inicial no primeiro acesso
func (t *treasury) accountLocked(account string) uint64 {
	if _, ok := t.balances[account]; !ok {
		t.balances[account] = seedBalance
	}
	return t.balances[account]
}

func (t *treasury) debit(account string, amount uint64, ref string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seenRefs[ref] {
		return 0, errDuplicateRef
	}
	bal := t.accountLocked(account)
	if bal < amount {
		return 0, errInsufficientFunds
	}
	t.balances[account] = bal - amount
	t.seenRefs[ref] = true
	return t.balances[account], nil
}

func (t *treasury) credit(account string, amount uint64, ref string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seenRefs[ref] {
		return 0, errDuplicateRef
	}
	bal := t.accountLocked(account)
	t.balances[account] = bal + amount
	t.seenRefs[ref] = true
	return t.balances[account], nil
}

func (t *treasury) balance(account string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accountLocked(account)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_transfers_total",
		Help: "transferências por operação e resultado",
	}, []string{"op", "outcome"})
	prometheus.MustRegister(transfers)

	tr := newTreasury()

	mux := http.NewServeMux()

	mux.HandleFunc("/treasury/debit", func(w http.ResponseWriter, r *http.Request) {
		handleTransfer(w, r, log, transfers, "debit", tr.debit)
	})
	mux.HandleFunc("/treasury/credit", func(w http.ResponseWriter, r *http.Request) {
		handleTransfer(w, r, log, transfers, "credit", tr.credit)
	})
	mux.HandleFunc("/treasury/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		account := r.URL.Query().Get("account")
		if account == "" {
			http.Error(w, "missing account", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"account": account,
			"balance": tr.balance(account),
		})
	})

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("treasury-simulator listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Fatal("http", zap.Error(err))
	}
}

func handleTransfer(
	w http.ResponseWriter,
	r *http.Request,
	log *zap.Logger,
	transfers *prometheus.CounterVec,
	op string,
	apply func(account string, amount uint64, ref string) (uint64, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Account == "" || req.Ref == "" || req.Amount == 0 {
		http.Error(w, "account, ref and amount are required", http.StatusBadRequest)
		return
	}

	newBal, err := apply(req.Account, req.Amount, req.Ref)
	if err != nil {
		switch {
		case errors.Is(err, errDuplicateRef):
			// Ref repetida: operação já aplicada, responde ok sem reexecutar
			transfers.WithLabelValues(op, "duplicate").Inc()
			writeJSON(w, http.StatusOK, map[string]any{"account": req.Account, "duplicate": true})
		case errors.Is(err, errInsufficientFunds):
			transfers.WithLabelValues(op, "rejected").Inc()
			http.Error(w, "insufficient funds", http.StatusUnprocessableEntity)
		default:
			transfers.WithLabelValues(op, "error").Inc()
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	transfers.WithLabelValues(op, "ok").Inc()
	log.Debug("transfer applied",
		zap.String("op", op),
		zap.String("account", req.Account),
		zap.Uint64("amount", req.Amount),
		zap.String("ref", req.Ref),
	)
	writeJSON(w, http.StatusOK, map[string]any{"account": req.Account, "balance": newBal})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
