package room

import (
	"encoding/json"
	"unicode/utf8"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/events"
)

const previewLen = 50

type DataHandlers struct {
	d Deps
}

func NewDataHandlers(d Deps) *DataHandlers {
	d.defaults()
	return &DataHandlers{d: d}
}

func (h *DataHandlers) Register(reg *events.Registry) {
	reg.Register(events.TypeDataReceived, observe(h.d, h.onDataReceived), "data")
}

// timestamped is the envelope written by timestamped sends.
type timestamped struct {
	Content   string   `json:"content"`
	Timestamp *float64 `json:"timestamp"`
}

func (h *DataHandlers) onDataReceived(ev events.Event) {
	e := ev.(events.DataReceived)
	received := h.d.nowMs()
	content := string(e.Payload)
	if !utf8.ValidString(content) {
		content = string([]rune(content))
	}

	msg := domain.DataMessage{
		Content:   content,
		From:      identityOf(e.Participant),
		Kind:      e.Kind,
		Topic:     e.Topic,
		Timestamp: received,
		Size:      len(e.Payload),
	}

	var env timestamped
	if err := json.Unmarshal(e.Payload, &env); err == nil && env.Timestamp != nil && *env.Timestamp != 0 {
		sent := int64(*env.Timestamp)
		latency := received - sent
		msg.SentTimestamp = &sent
		msg.Latency = &latency
		msg.Content = env.Content
		h.d.Metrics.ObserveDataLatency(latency)
	}

	h.d.Store.DataChannel.AddMessage(msg)
	h.d.Store.SyncToWindow()
	h.d.Metrics.RecordDataMessage("received", msg.Size)

	preview := content
	if r := []rune(preview); len(r) > previewLen {
		preview = string(r[:previewLen]) + "..."
	}
	h.d.Board.Tracef("Data received from %s: %s", msg.From, preview)
}
