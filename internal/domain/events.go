package domain

import "fmt"

// DefaultUserID is the single fixed principal that owns all data.
// There is no authentication or multi-tenancy in this system.
const DefaultUserID = "00000000000000000000000001"

// Topic naming: one channel per entity instance, namespaced by kind.
func TopicSource(id string) string  { return "source:" + id }
func TopicPaper(id string) string   { return "paper:" + id }
func TopicAttempt(id string) string { return "attempt:" + id }

// StatusEvent is the payload fanned out to live-update subscribers.
// Consumers must treat it as a hint to re-fetch authoritative state,
// never as the state itself.
type StatusEvent struct {
	Type   string `json:"type"` // "source" | "paper" | "attempt"
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (e StatusEvent) Topic() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// EventPublisher publishes status-change events. Publish is fire-and-forget:
// implementations log and continue on transport failure, and must only be
// called after the owning transaction has committed.
type EventPublisher interface {
	Publish(topic string, event StatusEvent)
}

// Listener receives raw event payloads for one topic.
type Listener func(payload []byte)

// EventSubscriber registers listeners against topics. The returned function
// detaches the listener; the implementation opens the underlying transport
// subscription for a topic on its first listener and closes it on the last.
type EventSubscriber interface {
	Subscribe(topic string, listener Listener) (unsubscribe func(), err error)
}
