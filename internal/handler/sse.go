package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"examcraft/internal/domain"
)

const keepAliveInterval = 15 * time.Second

// writeSSE writes one server-sent event and flushes it. A flush failure
// means the client is gone.
func writeSSE(w *bufio.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeSSEComment(w *bufio.Writer, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	return w.Flush()
}

// streamEvents drives one SSE connection: snapshot first, then live updates
// from the subscriber, with periodic keep-alive comments. rawFallback shapes
// payloads that are not valid JSON. The listener is detached when the client
// disconnects.
func streamEvents(
	c *fiber.Ctx,
	subscriber domain.EventSubscriber,
	topic string,
	snapshot interface{},
	rawFallback func(raw string) interface{},
) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if err := writeSSE(w, "snapshot", snapshot); err != nil {
			return
		}

		events := make(chan []byte, 16)
		unsubscribe, err := subscriber.Subscribe(topic, func(payload []byte) {
			buf := make([]byte, len(payload))
			copy(buf, payload)
			select {
			case events <- buf:
			default:
				// A stalled client must not block the dispatcher.
			}
		})
		if err != nil {
			_ = writeSSE(w, "error", map[string]interface{}{"error": err.Error()})
			return
		}
		defer unsubscribe()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case payload := <-events:
				var data interface{}
				if err := json.Unmarshal(payload, &data); err != nil || data == nil {
					data = rawFallback(string(payload))
				}
				if err := writeSSE(w, "update", data); err != nil {
					return
				}
			case <-keepAlive.C:
				if err := writeSSEComment(w, "keep-alive"); err != nil {
					return
				}
			}
		}
	}))
	return nil
}
