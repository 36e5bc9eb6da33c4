package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/contexthelper"
	"github.com/frostvault/frostvault/internal/events"
)

const eventStream = "frostvault-events"

// RedisStorage caches predicted deposit-route addresses, so user-facing
// services can hand out custody addresses before a route exists, and
// mirrors emitted events onto a stream for the external indexer.
type RedisStorage struct {
	cfg    config.Config
	client *redis.Client
}

func NewRedisStorage(cfg config.Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		cfg:    cfg,
		client: client,
	}, nil
}

// SetRouteAddress caches the predicted route address for a salt.
func (r *RedisStorage) SetRouteAddress(ctx context.Context, salt string, address string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Set(ctx, routeAddressKey(salt), address, 0).Err()
}

// GetRouteAddress returns the cached route address for a salt.
func (r *RedisStorage) GetRouteAddress(ctx context.Context, salt string) (string, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return "", ctx.Err()
	}
	address, err := r.client.Get(ctx, routeAddressKey(salt)).Result()
	if err != nil {
		return "", fmt.Errorf("fail to get route address, err: %w", err)
	}
	return address, nil
}

// PublishEvent appends an emitted record to the event stream.
func (r *RedisStorage) PublishEvent(ctx context.Context, record events.Record) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("fail to serialize event record to json, err: %w", err)
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		Values: map[string]interface{}{
			"kind":    string(record.Kind),
			"payload": string(payload),
		},
	}).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func routeAddressKey(salt string) string {
	return fmt.Sprintf("route-address-%s", salt)
}
