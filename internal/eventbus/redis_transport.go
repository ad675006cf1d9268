package eventbus

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"examcraft/internal/logger"
)

// RedisTransport multiplexes all topic subscriptions over one Redis pub/sub
// connection, subscribing and unsubscribing channels as topics come and go.
type RedisTransport struct {
	pubsub *redis.PubSub

	mu       sync.Mutex
	handlers map[string]func(payload []byte)
	closed   bool
}

func NewRedisTransport(client redis.UniversalClient) *RedisTransport {
	t := &RedisTransport{
		pubsub:   client.Subscribe(context.Background()),
		handlers: make(map[string]func(payload []byte)),
	}
	go t.receive()
	return t
}

func (t *RedisTransport) receive() {
	for msg := range t.pubsub.Channel() {
		t.mu.Lock()
		handler := t.handlers[msg.Channel]
		t.mu.Unlock()
		if handler != nil {
			handler([]byte(msg.Payload))
		}
	}
}

func (t *RedisTransport) Subscribe(topic string, handler func(payload []byte)) (func(), error) {
	channel := channelName(topic)

	t.mu.Lock()
	t.handlers[channel] = handler
	t.mu.Unlock()

	if err := t.pubsub.Subscribe(context.Background(), channel); err != nil {
		t.mu.Lock()
		delete(t.handlers, channel)
		t.mu.Unlock()
		return nil, err
	}

	stop := func() {
		t.mu.Lock()
		delete(t.handlers, channel)
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		if err := t.pubsub.Unsubscribe(context.Background(), channel); err != nil {
			logger.Get().Warn("failed to unsubscribe channel",
				zap.String("channel", channel), zap.Error(err))
		}
	}
	return stop, nil
}

// Close tears down the shared pub/sub connection.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.pubsub.Close()
}
