package services

import (
	"context"
	"encoding/json"
	"strings"

	"meetprobe/internal/core/domain"
	"meetprobe/pkg/errclass"
	"meetprobe/pkg/tracing"
)

// SendDataMessage publishes content on the data channel. Missing room or a
// canPublishData=false grant block publishing without calling the SDK.
func (h *Helpers) SendDataMessage(ctx context.Context, content string, reliable bool, destinations []string) error {
	room := h.client.Room()
	if room == nil {
		h.blockPublishing(domain.ErrNoActiveRoom.Error())
		return domain.ErrNoActiveRoom
	}

	lp := room.LocalParticipant()
	if !lp.CanPublishData() {
		h.logger.Warnw("Data publishing blocked: canPublishData permission is false")
		h.blockPublishing(domain.ErrPublishDataForbidden.Error())
		return domain.ErrPublishDataForbidden
	}

	ctx, span := tracing.TraceRoomOperation(ctx, "send-data", room.Name(), lp.Identity())
	defer span.End()

	payload := []byte(content)
	err := lp.PublishData(ctx, payload, domain.DataPublishOptions{
		Reliable:              reliable,
		DestinationIdentities: destinations,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		h.logger.Errorw("Failed to send data message", "error", err)
		h.store.DataChannel.SetLastError(errclass.Message(err))
		if errclass.IsPermission(err) {
			h.store.DataChannel.SetPublishingBlocked(true)
		}
		h.store.SyncToWindow()
		return err
	}

	h.store.DataChannel.AddSentMessage(domain.SentDataMessage{
		Content:               content,
		Reliable:              reliable,
		DestinationIdentities: destinations,
		Timestamp:             h.nowMs(),
		Size:                  len(payload),
	})
	h.store.SyncToWindow()
	h.metrics.RecordDataMessage("sent", len(payload))
	return nil
}

func (h *Helpers) blockPublishing(msg string) {
	h.store.DataChannel.SetLastError(msg)
	h.store.DataChannel.SetPublishingBlocked(true)
	h.store.SyncToWindow()
}

// SendDataMessageOfSize sends n 'X' bytes.
func (h *Helpers) SendDataMessageOfSize(ctx context.Context, n int, reliable bool) error {
	if n < 0 {
		n = 0
	}
	return h.SendDataMessage(ctx, strings.Repeat("X", n), reliable, nil)
}

type timestampedMessage struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// SendTimestampedDataMessage wraps content with the send time so receivers
// can compute latency.
func (h *Helpers) SendTimestampedDataMessage(ctx context.Context, content string, reliable bool) error {
	b, err := json.Marshal(timestampedMessage{Content: content, Timestamp: h.nowMs()})
	if err != nil {
		return err
	}
	return h.SendDataMessage(ctx, string(b), reliable, nil)
}

func (h *Helpers) ReceivedMessages() []domain.DataMessage {
	return h.store.DataChannel.Messages()
}

// FindReceivedMessage returns the first message with content, optionally from
// a given sender.
func (h *Helpers) FindReceivedMessage(content, from string) (domain.DataMessage, bool) {
	for _, m := range h.store.DataChannel.Messages() {
		if m.Content == content && (from == "" || m.From == from) {
			return m, true
		}
	}
	return domain.DataMessage{}, false
}

func (h *Helpers) HasReceivedMessage(content, from string) bool {
	_, ok := h.FindReceivedMessage(content, from)
	return ok
}

func (h *Helpers) MessagesFromSender(identity string) []domain.DataMessage {
	out := []domain.DataMessage{}
	for _, m := range h.store.DataChannel.Messages() {
		if m.From == identity {
			out = append(out, m)
		}
	}
	return out
}

func (h *Helpers) IsPublishingBlocked() bool {
	return h.store.DataChannel.PublishingBlocked()
}

func (h *Helpers) LastDataChannelError() string {
	return h.store.DataChannel.LastError()
}

func (h *Helpers) SentMessageCount() int {
	return h.store.DataChannel.SentCount()
}

func (h *Helpers) LatencyStats() domain.LatencyStats {
	return h.store.DataChannel.LatencyStats()
}

func (h *Helpers) ClearDataChannelState() {
	h.store.DataChannel.Clear()
	h.store.SyncToWindow()
}
