package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// currentKey é a chave Redis com o snapshot corrente do pool.
const currentKey = "pool:current"

// PoolSnapshot é o payload cacheado e difundido a cada mutação do pool.
type PoolSnapshot struct {
	TotalAssets uint64 `json:"total_assets"`
	TotalShares uint64 `json:"total_shares"`
	HouseEdge   uint64 `json:"house_edge"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// PoolUpdate é o envelope publicado no Pub/Sub para o feed-service.
type PoolUpdate struct {
	Topic   string       `json:"topic"` // "pool" ou "bet:<id>"
	Payload PoolSnapshot `json:"payload"`
}

// RedisCache guarda o snapshot do pool no Redis com TTL e o difunde num
// canal Pub/Sub para consumidores externos (feed-service/ws).
type RedisCache struct {
	Client  *redis.Client
	Channel string
	TTL     time.Duration
}

func NewRedisCache(c *redis.Client, channel string, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, Channel: channel, TTL: ttl}
}

// Publish grava o snapshot na chave corrente e publica no canal de broadcast.
func (r *RedisCache) Publish(ctx context.Context, snap PoolSnapshot) error {
	snap.TsUnixMs = time.Now().UnixMilli()

	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, currentKey, b, r.TTL).Err(); err != nil {
		return err
	}

	env, _ := json.Marshal(PoolUpdate{Topic: "pool", Payload: snap})
	return r.Client.Publish(ctx, r.Channel, env).Err()
}
