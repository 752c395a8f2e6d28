package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rafi-backend/internal/models"
)

// UpdatesChannel is the Redis pub/sub channel for one user's events.
func UpdatesChannel(userID uuid.UUID) string {
	return "conversation_updates:" + userID.String()
}

// RedisPublisher sends events through Redis pub/sub so every server
// instance's hub can forward them.
type RedisPublisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(redisClient *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{redis: redisClient, logger: logger}
}

// Publish is best effort: a failed publish is logged and dropped.
func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode event", "type", event.Type, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, UpdatesChannel(userID), data).Err(); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event", "type", event.Type, "error", err)
	}
}
