package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool-poc/internal/indexer"
	"github.com/radieske/wager-pool-poc/internal/shared/config"
	"github.com/radieske/wager-pool-poc/internal/shared/db"
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

	// Postgres para projeção de leitura das apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	store := indexer.NewStore(pg)
	if err := store.Init(context.Background()); err != nil {
		log.Fatal("pg schema", zap.Error(err))
	}

	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_events_consumed_total",
		Help: "eventos lidos por tópico",
	}, []string{"topic"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "indexer_events_persisted_total",
		Help: "eventos projetados no banco",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_failures_total",
		Help: "falhas por etapa",
	}, []string{"stage"})
	prometheus.MustRegister(consumed, persisted, failures)

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetEventsDLQ)
	defer dlq.Close()

	proc := &indexer.Processor{
		Log:   log,
		Store: store,
		DLQ:   dlq,

		OnConsumed: func(topic string) { consumed.WithLabelValues(topic).Inc() },
		OnPersist:  func() { persisted.Inc() },
		OnError:    func(stage string) { failures.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := []string{
		cfg.TopicBetPlaced,
		cfg.TopicBetResolved,
		cfg.TopicBetClaimed,
		cfg.TopicBetExpired,
		cfg.TopicHouseEdgeChanged,
	}

	log.Info("bet-indexer-worker started", zap.Strings("topics", topics))

	// Um reader e uma goroutine por tópico; todos no mesmo group id
	var wg sync.WaitGroup
	readers := make([]*kafkago.Reader, 0, len(topics))
	for _, topic := range topics {
		r := kafka.NewReader(cfg.KafkaBrokers, topic, "bet-indexer")
		readers = append(readers, r)

		wg.Add(1)
		go func(topic string, r *kafkago.Reader) {
			defer wg.Done()
			proc.Consume(ctx, topic, r)
		}(topic, r)
	}

	<-ctx.Done()
	log.Info("shutting down")
	for _, r := range readers {
		_ = r.Close()
	}
	wg.Wait()
}
