package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	shkafka "github.com/radieske/wager-pool-poc/internal/shared/kafka"
	"github.com/radieske/wager-pool-poc/pkg/contracts/events"
	"github.com/radieske/wager-pool-poc/pkg/contracts/topics"
)

// Processor consome o fluxo de eventos do motor e projeta em Postgres.
// Mensagens com payload inválido ou falha persistente de escrita vão para a
// DLQ em vez de travar a partição.
type Processor struct {
	Log   *zap.Logger
	Store *Store
	DLQ   *kafkago.Writer // opcional

	OnConsumed func(topic string)
	OnPersist  func()
	OnError    func(stage string)
}

// Consume roda o loop de um tópico até o contexto encerrar.
// Executável numa goroutine por tópico no main do worker.
func (p *Processor) Consume(ctx context.Context, topic string, r *kafkago.Reader) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Warn("kafka read", zap.String("topic", topic), zap.Error(err))
			p.onError("read")
			time.Sleep(time.Second)
			continue
		}
		p.onConsumed(topic)

		if err := p.handle(ctx, topic, msg.Value); err != nil {
			p.Log.Error("index event", zap.String("topic", topic), zap.Error(err))
			p.onError("handle")
			if p.DLQ != nil {
				_ = shkafka.WriteJSON(ctx, p.DLQ, string(msg.Key), msg.Value)
			}
			continue
		}
		p.onPersist()
	}
}

// handle despacha o payload conforme o tópico de origem
func (p *Processor) handle(ctx context.Context, topic string, value []byte) error {
	switch topic {
	case topics.BetPlaced:
		var ev events.BetPlaced
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("unmarshal bet_placed: %w", err)
		}
		if err := p.Store.InsertPlaced(ctx, ev.BetID, ev.Owner, ev.Amount, ev.TargetOdds, ev.OriginBlock); err != nil {
			return err
		}
		return p.Store.InsertEvent(ctx, ev.BetID, topics.BetPlaced, value)

	case topics.BetResolved:
		var ev events.BetResolved
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("unmarshal bet_resolved: %w", err)
		}
		if err := p.Store.MarkResolved(ctx, ev.BetID, ev.Won, ev.Payout); err != nil {
			return err
		}
		return p.Store.InsertEvent(ctx, ev.BetID, topics.BetResolved, value)

	case topics.BetClaimed:
		var ev events.BetClaimed
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("unmarshal bet_claimed: %w", err)
		}
		if err := p.Store.MarkClaimed(ctx, ev.BetID, ev.Payout); err != nil {
			return err
		}
		return p.Store.InsertEvent(ctx, ev.BetID, topics.BetClaimed, value)

	case topics.BetExpired:
		var ev events.BetExpired
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("unmarshal bet_expired: %w", err)
		}
		if err := p.Store.MarkExpired(ctx, ev.BetID); err != nil {
			return err
		}
		return p.Store.InsertEvent(ctx, ev.BetID, topics.BetExpired, value)

	case topics.HouseEdgeChanged:
		var ev events.HouseEdgeChanged
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("unmarshal house_edge_changed: %w", err)
		}
		return p.Store.InsertEdgeChange(ctx, ev.OldEdge, ev.NewEdge)

	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
}

func (p *Processor) onConsumed(topic string) {
	if p.OnConsumed != nil {
		p.OnConsumed(topic)
	}
}

func (p *Processor) onPersist() {
	if p.OnPersist != nil {
		p.OnPersist()
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
