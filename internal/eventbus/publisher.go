// Package eventbus carries status-change events from pipeline writers to
// live-update subscribers over Redis pub/sub. Delivery is best-effort: the
// database is authoritative, events only prompt a re-fetch.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

const channelPrefix = "examcraft:events:"

func channelName(topic string) string {
	return channelPrefix + topic
}

// RedisPublisher implements domain.EventPublisher on Redis pub/sub.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish fans the event out to the topic's channel. Failures are logged and
// swallowed: a missed event never fails the pipeline write that produced it.
func (p *RedisPublisher) Publish(topic string, event domain.StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Get().Error("failed to encode status event",
			zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, channelName(topic), payload).Err(); err != nil {
		logger.Get().Warn("failed to publish status event",
			zap.String("topic", topic), zap.Error(err))
	}
}
