package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/wager-pool-poc/pkg/contracts/events"
)

// KafkaPublisher publica os eventos observáveis do motor, um writer por
// tópico, chaveados pelo id da aposta para preservar ordem por registro.
type KafkaPublisher struct {
	Placed      *kafka.Writer
	Resolved    *kafka.Writer
	Claimed     *kafka.Writer
	Expired     *kafka.Writer
	EdgeChanged *kafka.Writer
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.Placed, strconv.FormatUint(e.BetID, 10), e)
}

func (p *KafkaPublisher) PublishBetResolved(ctx context.Context, e events.BetResolved) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.Resolved, strconv.FormatUint(e.BetID, 10), e)
}

func (p *KafkaPublisher) PublishBetClaimed(ctx context.Context, e events.BetClaimed) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.Claimed, strconv.FormatUint(e.BetID, 10), e)
}

func (p *KafkaPublisher) PublishBetExpired(ctx context.Context, e events.BetExpired) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.Expired, strconv.FormatUint(e.BetID, 10), e)
}

func (p *KafkaPublisher) PublishHouseEdgeChanged(ctx context.Context, e events.HouseEdgeChanged) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.EdgeChanged, "house-edge", e)
}

func write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	b, _ := json.Marshal(v)
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}
