package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool-poc/internal/engine-service/cache"
	"github.com/radieske/wager-pool-poc/internal/engine-service/dto"
	"github.com/radieske/wager-pool-poc/internal/engine/ledger"
	"github.com/radieske/wager-pool-poc/internal/engine/pool"
	"github.com/radieske/wager-pool-poc/pkg/contracts/events"
)

// Publisher é a visão que o servidor tem do produtor de eventos observáveis.
type Publisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishBetResolved(context.Context, events.BetResolved) error
	PublishBetClaimed(context.Context, events.BetClaimed) error
	PublishBetExpired(context.Context, events.BetExpired) error
	PublishHouseEdgeChanged(context.Context, events.HouseEdgeChanged) error
}

// Treasury duplica a interface do ledger para as operações de stake/unstake,
// cujo colateral entra e sai direto do pool sem passar pelo ledger.
type Treasury interface {
	Debit(ctx context.Context, account string, amount uint64, ref string) error
	Credit(ctx context.Context, account string, amount uint64, ref string) error
}

type Server struct {
	log      *zap.Logger
	ledger   *ledger.Ledger
	pool     *pool.Pool
	treasury Treasury
	publ     Publisher
	cache    *cache.RedisCache

	operatorToken string

	// callbacks de métricas, ligados no main
	OnBetPlaced  func()
	OnBetSettled func(result string) // "won" | "lost" | "expired"
	OnSwept      func(n int)
}

func NewServer(log *zap.Logger, l *ledger.Ledger, p *pool.Pool, t Treasury, publ Publisher, c *cache.RedisCache, operatorToken string) *Server {
	return &Server{
		log:           log,
		ledger:        l,
		pool:          p,
		treasury:      t,
		publ:          publ,
		cache:         c,
		operatorToken: operatorToken,
		OnBetPlaced:   func() {},
		OnBetSettled:  func(string) {},
		OnSwept:       func(int) {},
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.placeBet)        // POST
	mux.HandleFunc("/bets/", s.betSubroute)    // GET /bets/{id}, GET /bets/{id}/result, POST /bets/{id}/claim
	mux.HandleFunc("/pool", s.getPool)         // GET
	mux.HandleFunc("/pool/stake", s.stake)     // POST
	mux.HandleFunc("/pool/unstake", s.unstake) // POST
	mux.HandleFunc("/limits", s.limits)        // GET ?target_odds=...
	mux.HandleFunc("/house-edge", s.houseEdge) // GET | PUT (operador)
	mux.HandleFunc("/internal/sweep", s.sweep) // POST
	return mux
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.Amount == 0 || req.TargetOdds == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	b, err := s.ledger.PlaceBet(r.Context(), req.Owner, req.Amount, req.TargetOdds)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.OnBetPlaced()

	_ = s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:       b.ID,
		Owner:       b.Owner,
		Amount:      b.Amount,
		TargetOdds:  b.TargetOdds,
		OriginBlock: b.OriginBlock,
	})

	writeJSON(w, dto.PlaceBetResponse{BetID: b.ID, OriginBlock: b.OriginBlock, Status: string(b.Status)})
}

// betSubroute resolve /bets/{id}, /bets/{id}/result e /bets/{id}/claim
func (s *Server) betSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bets/")
	parts := strings.SplitN(rest, "/", 2)

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "betId must be an unsigned integer", http.StatusBadRequest)
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getBet(w, r, id)
	case action == "result" && r.Method == http.MethodGet:
		s.getResult(w, r, id)
	case action == "claim" && r.Method == http.MethodPost:
		s.claim(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getBet(w http.ResponseWriter, _ *http.Request, id uint64) {
	b, err := s.ledger.GetBet(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.BetResponse{
		BetID:       b.ID,
		Owner:       b.Owner,
		Amount:      b.Amount,
		TargetOdds:  b.TargetOdds,
		OriginBlock: b.OriginBlock,
		Status:      string(b.Status),
	})
}

func (s *Server) getResult(w http.ResponseWriter, _ *http.Request, id uint64) {
	won, payout, err := s.ledger.ComputeResult(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, dto.ResultResponse{BetID: id, Won: won, Payout: payout})
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request, id uint64) {
	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Claim(r.Context(), id, req.Owner)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	result := "lost"
	if res.Won {
		result = "won"
	}
	s.OnBetSettled(result)

	_ = s.publ.PublishBetResolved(r.Context(), events.BetResolved{BetID: id, Won: res.Won, Payout: res.Payout})
	if res.Won {
		_ = s.publ.PublishBetClaimed(r.Context(), events.BetClaimed{BetID: id, Owner: res.Bet.Owner, Payout: res.Payout})
	}
	s.broadcastPool(r.Context())

	writeJSON(w, dto.ClaimResponse{BetID: id, Won: res.Won, Payout: res.Payout, Status: string(res.Bet.Status)})
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	assets, shares := s.pool.Snapshot()
	writeJSON(w, dto.PoolResponse{TotalAssets: assets, TotalShares: shares})
}

func (s *Server) stake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Provider == "" || req.Assets == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// 1) colateral entra primeiro (primitiva atômica da tesouraria)
	ref := "stake:" + uuid.NewString()
	if err := s.treasury.Debit(r.Context(), req.Provider, req.Assets, ref); err != nil {
		http.Error(w, "treasury debit failed", http.StatusConflict)
		return
	}

	// 2) emissão de shares; se falhar, devolve o colateral (compensação)
	shares, err := s.pool.Stake(req.Provider, req.Assets)
	if err != nil {
		if cerr := s.treasury.Credit(r.Context(), req.Provider, req.Assets, ref+":refund"); cerr != nil {
			s.log.Error("stake refund failed", zap.String("provider", req.Provider), zap.Error(cerr))
		}
		s.writeErr(w, err)
		return
	}
	s.broadcastPool(r.Context())

	writeJSON(w, dto.StakeResponse{Provider: req.Provider, Shares: shares})
}

func (s *Server) unstake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.UnstakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Provider == "" || req.Shares == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	assets, err := s.pool.Unstake(req.Provider, req.Shares)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	ref := "unstake:" + uuid.NewString()
	if err := s.treasury.Credit(r.Context(), req.Provider, assets, ref); err != nil {
		// sem o crédito externo o resgate não aconteceu: devolve exatamente
		// as shares queimadas e o colateral debitado
		s.pool.RevertUnstake(req.Provider, req.Shares, assets)
		http.Error(w, "treasury credit failed", http.StatusBadGateway)
		return
	}
	s.broadcastPool(r.Context())

	writeJSON(w, dto.UnstakeResponse{Provider: req.Provider, Assets: assets})
}

func (s *Server) limits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target, err := strconv.ParseUint(r.URL.Query().Get("target_odds"), 10, 64)
	if err != nil || target == 0 {
		http.Error(w, "target_odds required", http.StatusBadRequest)
		return
	}
	writeJSON(w, dto.MaxBetResponse{TargetOdds: target, MaxBet: s.ledger.MaxBet(target)})
}

func (s *Server) houseEdge(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, dto.HouseEdgeResponse{Edge: s.ledger.HouseEdge()})
	case http.MethodPut:
		if r.Header.Get("X-Operator-Token") != s.operatorToken {
			http.Error(w, "operator token required", http.StatusForbidden)
			return
		}
		var req dto.SetHouseEdgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		old, err := s.ledger.SetHouseEdge(req.Edge)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		_ = s.publ.PublishHouseEdgeChanged(r.Context(), events.HouseEdgeChanged{OldEdge: old, NewEdge: req.Edge})
		s.broadcastPool(r.Context())
		writeJSON(w, dto.HouseEdgeResponse{Edge: req.Edge})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Max <= 0 {
		http.Error(w, "max must be positive", http.StatusBadRequest)
		return
	}

	swept := s.ledger.SweepExpired(req.Max)
	for _, b := range swept {
		_ = s.publ.PublishBetExpired(r.Context(), events.BetExpired{BetID: b.ID})
		s.OnBetSettled("expired")
	}
	if len(swept) > 0 {
		s.OnSwept(len(swept))
		s.broadcastPool(r.Context())
	}

	writeJSON(w, dto.SweepResponse{Swept: len(swept)})
}

// broadcastPool atualiza o snapshot no Redis e difunde para o feed
func (s *Server) broadcastPool(ctx context.Context) {
	assets, shares := s.pool.Snapshot()
	snap := cache.PoolSnapshot{
		TotalAssets: assets,
		TotalShares: shares,
		HouseEdge:   s.ledger.HouseEdge(),
	}
	if err := s.cache.Publish(ctx, snap); err != nil {
		s.log.Warn("pool snapshot broadcast failed", zap.Error(err))
	}
}

// writeErr traduz os erros tipados do motor em status HTTP
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrBetNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidOdds),
		errors.Is(err, ledger.ErrEdgeAboveCap):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrExceedsRiskLimit):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ledger.ErrTooEarly),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrInsufficientShares),
		errors.Is(err, pool.ErrInvalidStake):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrResultExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
