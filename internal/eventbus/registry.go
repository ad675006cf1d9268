package eventbus

import (
	"sync"

	"go.uber.org/zap"

	"examcraft/internal/domain"
	"examcraft/internal/logger"
)

// Transport is the underlying pub/sub mechanism the registry multiplexes.
// Subscribe attaches one handler per topic; the returned func detaches it.
type Transport interface {
	Subscribe(topic string, handler func(payload []byte)) (stop func(), err error)
}

// Registry implements domain.EventSubscriber. It reference-counts listeners
// per topic so the transport holds exactly one subscription per topic: the
// first listener opens it, the last unsubscribe closes it.
type Registry struct {
	transport Transport

	mu     sync.Mutex
	topics map[string]*topicState
}

type topicState struct {
	listeners map[int]domain.Listener
	nextID    int
	stop      func()
}

func NewRegistry(transport Transport) *Registry {
	return &Registry{
		transport: transport,
		topics:    make(map[string]*topicState),
	}
}

// Subscribe registers the listener and returns its disposer. The disposer is
// idempotent. Listener panics are isolated: one broken consumer never blocks
// delivery to the others.
func (r *Registry) Subscribe(topic string, listener domain.Listener) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.topics[topic]
	if !ok {
		state = &topicState{listeners: make(map[int]domain.Listener)}
		stop, err := r.transport.Subscribe(topic, func(payload []byte) {
			r.dispatch(topic, payload)
		})
		if err != nil {
			return nil, err
		}
		state.stop = stop
		r.topics[topic] = state
	}

	id := state.nextID
	state.nextID++
	state.listeners[id] = listener

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			current, ok := r.topics[topic]
			if !ok {
				return
			}
			delete(current.listeners, id)
			if len(current.listeners) == 0 {
				current.stop()
				delete(r.topics, topic)
			}
		})
	}
	return unsubscribe, nil
}

func (r *Registry) dispatch(topic string, payload []byte) {
	r.mu.Lock()
	state, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	listeners := make([]domain.Listener, 0, len(state.listeners))
	for _, l := range state.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Get().Error("event listener panicked",
						zap.String("topic", topic), zap.Any("panic", p))
				}
			}()
			l(payload)
		}()
	}
}

// ListenerCount reports the live listeners on a topic.
func (r *Registry) ListenerCount(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.topics[topic]; ok {
		return len(state.listeners)
	}
	return 0
}
