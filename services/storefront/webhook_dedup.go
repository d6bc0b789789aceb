package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduplicator lembra quais eventos do processador já foram aplicados
type EventDeduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

const webhookEventTTL = 72 * time.Hour

// RedisEventDeduplicator guarda os ids de evento no Redis com TTL
type RedisEventDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventDeduplicator cria o de-dup com o TTL padrão de 72h
func NewRedisEventDeduplicator(client *redis.Client) *RedisEventDeduplicator {
	return &RedisEventDeduplicator{
		client: client,
		ttl:    webhookEventTTL,
	}
}

func (d *RedisEventDeduplicator) key(eventID string) string {
	return "storefront:webhook:event:" + eventID
}

func (d *RedisEventDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisEventDeduplicator) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.SetNX(ctx, d.key(eventID), time.Now().Unix(), d.ttl).Err()
}

// NoopEventDeduplicator é usado quando REDIS_ADDR não está configurado
type NoopEventDeduplicator struct{}

func (NoopEventDeduplicator) Seen(context.Context, string) (bool, error) { return false, nil }

func (NoopEventDeduplicator) MarkProcessed(context.Context, string) error { return nil }
