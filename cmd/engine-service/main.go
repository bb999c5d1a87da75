package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ecache "github.com/radieske/wager-pool-poc/internal/engine-service/cache"
	ehttp "github.com/radieske/wager-pool-poc/internal/engine-service/http"
	"github.com/radieske/wager-pool-poc/internal/engine-service/producer"
	"github.com/radieske/wager-pool-poc/internal/engine-service/treasury"
	"github.com/radieske/wager-pool-poc/internal/engine/beacon"
	"github.com/radieske/wager-pool-poc/internal/engine/ledger"
	"github.com/radieske/wager-pool-poc/internal/engine/pool"
	"github.com/radieske/wager-pool-poc/internal/shared/cache"
	"github.com/radieske/wager-pool-poc/internal/shared/config"
	"github.com/radieske/wager-pool-poc/internal/shared/kafka"
	"github.com/radieske/wager-pool-poc/internal/shared/logger"
	"github.com/radieske/wager-pool-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.ValidateEngine(); err != nil {
		log.Fatal("engine config", zap.Error(err))
	}

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers, um por tópico de evento observável
	publ := &producer.KafkaPublisher{
		Placed:      kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced),
		Resolved:    kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved),
		Claimed:     kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetClaimed),
		Expired:     kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetExpired),
		EdgeChanged: kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicHouseEdgeChanged),
	}
	defer publ.Placed.Close()
	defer publ.Resolved.Close()
	defer publ.Claimed.Close()
	defer publ.Expired.Close()
	defer publ.EdgeChanged.Close()

	// Estado do motor: beacon, pool e ledger vivem neste processo
	bc := beacon.New([]byte(fmt.Sprintf("wager-beacon:%s:%d", cfg.Env, time.Now().UnixNano())), cfg.BeaconWindow)
	lp := pool.New()
	tcli := treasury.New(cfg.TreasuryURL)

	led, err := ledger.New(ledger.Config{
		MinBet:        cfg.MinBet,
		MinOdds:       cfg.MinOdds,
		MaxOdds:       cfg.MaxOdds,
		HouseEdge:     cfg.HouseEdge,
		HouseEdgeCap:  cfg.HouseEdgeCap,
		ExpiryHorizon: cfg.ExpiryHorizon,
	}, lp, bc, tcli)
	if err != nil {
		log.Fatal("ledger", zap.Error(err))
	}

	// Avanço periódico do beacon: cada tick finaliza uma posição nova
	go func() {
		t := time.NewTicker(time.Duration(cfg.BeaconIntervalMs) * time.Millisecond)
		defer t.Stop()
		for range t.C {
			pos := bc.Advance()
			log.Debug("beacon advanced", zap.Uint64("position", pos))
		}
	}()

	snapCache := ecache.NewRedisCache(rdb, cfg.RedisPubSubChannel, 60*time.Second)

	api := ehttp.NewServer(log, led, lp, tcli, publ, snapCache, cfg.OperatorToken)

	// Métricas Prometheus do motor
	betsPlaced := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_bets_placed_total", Help: "apostas aceitas"})
	betsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_bets_settled_total", Help: "apostas liquidadas por resultado"}, []string{"result"})
	sweptTotal := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_bets_swept_total", Help: "apostas expiradas pela varredura"})
	prometheus.MustRegister(betsPlaced, betsSettled, sweptTotal)
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "engine_pool_assets", Help: "colateral total do pool"},
		func() float64 { a, _ := lp.Snapshot(); return float64(a) },
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "engine_pool_shares", Help: "shares emitidas do pool"},
		func() float64 { _, s := lp.Snapshot(); return float64(s) },
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "engine_beacon_position", Help: "posição corrente do beacon"},
		func() float64 { return float64(bc.Current()) },
	))

	api.OnBetPlaced = func() { betsPlaced.Inc() }
	api.OnBetSettled = func(result string) { betsSettled.WithLabelValues(result).Inc() }
	api.OnSwept = func(n int) { sweptTotal.Add(float64(n)) }

	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	log.Info("engine-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.Uint64("beacon_window", cfg.BeaconWindow),
		zap.Uint64("expiry_horizon", cfg.ExpiryHorizon),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
