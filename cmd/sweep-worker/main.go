package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool-poc/internal/shared/config"
	"github.com/radieske/wager-pool-poc/internal/shared/logger"
	"github.com/radieske/wager-pool-poc/internal/shared/metrics"
)

// sweepResp espelha a resposta de POST /internal/sweep do engine-service.
type sweepResp struct {
	Swept int `json:"swept"`
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "varreduras executadas",
	})
	sweepErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_errors_total",
		Help: "varreduras com falha",
	})
	sweptBets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_bets_expired_total",
		Help: "apostas expiradas reportadas pelo motor",
	})
	prometheus.MustRegister(sweepRuns, sweepErrors, sweptBets)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pingEngine(ctx, cfg.EngineURL)
	})

	log.Info("sweep-worker started",
		zap.String("engine", cfg.EngineURL),
		zap.Int("interval_ms", cfg.SweepIntervalMs),
		zap.Int("batch", cfg.SweepBatch),
	)

	ctx := context.Background()
	ticker := time.NewTicker(time.Duration(cfg.SweepIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	// Loop principal: dispara a varredura no motor e repete enquanto o lote
	// voltar cheio, pra drenar filas longas de apostas vencidas mais rápido
	for range ticker.C {
		sweepRuns.Inc()
		for {
			n, err := sweepOnce(ctx, cfg)
			if err != nil {
				sweepErrors.Inc()
				log.Warn("sweep", zap.Error(err))
				break
			}
			if n > 0 {
				sweptBets.Add(float64(n))
				log.Info("bets expired", zap.Int("count", n))
			}
			if n < cfg.SweepBatch {
				break
			}
		}
	}
}

// sweepOnce faz uma chamada de varredura e retorna quantas apostas expiraram
func sweepOnce(ctx context.Context, cfg config.Config) (int, error) {
	body, _ := json.Marshal(map[string]any{"max": cfg.SweepBatch})

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(cctx, http.MethodPost, cfg.EngineURL+"/internal/sweep", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, errors.New("engine sweep http " + resp.Status)
	}
	var out sweepResp
	if jerr := json.NewDecoder(resp.Body).Decode(&out); jerr != nil {
		return 0, jerr
	}
	return out.Swept, nil
}

func pingEngine(ctx context.Context, base string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/pool", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("engine http " + resp.Status)
	}
	return nil
}
