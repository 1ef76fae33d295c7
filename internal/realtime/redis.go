package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ctf-arena/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const SolveChannel = "ctf:solves"

// RedisBus fans solve events out across replicas. Publish only writes to
// Redis; Run feeds every message on the channel, our own included, into
// the local Hub.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewRedisBus(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBus {
	return &RedisBus{client: client, hub: hub, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, ev SolveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding solve event: %w", err)
	}
	if err := b.client.Publish(ctx, SolveChannel, data).Err(); err != nil {
		return fmt.Errorf("publishing solve event: %w", err)
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, SolveChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", SolveChannel, err)
	}
	b.logger.Info("subscribed to solve channel", "channel", SolveChannel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *RedisBus) forward(payload string) {
	var ev SolveEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("dropping malformed solve event", "error", err)
		return
	}
	metrics.SolveEvents.WithLabelValues("redis").Inc()
	b.hub.deliver(ev)
}
