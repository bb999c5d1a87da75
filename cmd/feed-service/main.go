package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/wager-pool-poc/internal/feed/ws"
	"github.com/radieske/wager-pool-poc/internal/shared/cache"
	"github.com/radieske/wager-pool-poc/internal/shared/config"
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

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// POC: origem liberada; em produção validar contra whitelist
	hub := ws.NewHub(func(_ *http.Request) bool { return true })

	ctx := context.Background()
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("feed-service listening",
		zap.String("addr", addr),
		zap.String("channel", cfg.RedisPubSubChannel),
	)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Fatal("http", zap.Error(err))
	}
}
