package relay

import (
	"encoding/json"
	"strings"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/google/uuid"
)

// Message is the JSON body the message sinks publish.
type Message struct {
	ID string `json:"id"`
	event.Event
}

func encode(e event.Event) (string, []byte, error) {
	id := uuid.NewString()
	b, err := json.Marshal(Message{ID: id, Event: e})
	return id, b, err
}

// topic joins prefix, device and event type with sep. Separators inside the
// device name are replaced so the device stays one level.
func topic(prefix, sep string, e event.Event) string {
	dev := strings.ReplaceAll(e.Device, sep, "_")
	if dev == "" {
		dev = "_"
	}
	parts := []string{dev, string(e.Type)}
	if prefix != "" {
		parts = append([]string{strings.TrimSuffix(prefix, sep)}, parts...)
	}
	return strings.Join(parts, sep)
}
