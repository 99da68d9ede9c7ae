package handlers

import (
	"context"
	"log/slog"
	"time"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

// MessageEvent is a Messenger message received through the webhook
type MessageEvent struct {
	MessageID  string
	SenderID   string
	SenderName string
	Text       string
	Timestamp  int64 // Unix milliseconds
}

// HandleMessage answers one direct message through Messenger
func (h *EventHandler) HandleMessage(ctx context.Context, ev MessageEvent, pageID string) {
	if ev.SenderID == "" || ev.SenderID == pageID {
		return
	}
	if ev.Text == "" {
		slog.Info("Skipping message without text", "messageID", ev.MessageID)
		return
	}

	if !h.facebookEnabled(ctx) {
		slog.Info("Facebook auto-reply disabled, skipping message", "messageID", ev.MessageID)
		return
	}

	createdAt := h.now()
	if ev.Timestamp > 0 {
		createdAt = time.UnixMilli(ev.Timestamp)
	}
	inbox := &models.InboxMessage{
		MessageID: ev.MessageID,
		UserID:    ev.SenderID,
		UserName:  ev.SenderName,
		PageID:    pageID,
		Message:   ev.Text,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}
	claimed, err := h.store.ClaimMessage(ctx, inbox)
	if err != nil {
		slog.Error("Failed to claim message", "error", err, "messageID", ev.MessageID)
	} else if !claimed {
		slog.Info("Message already handled", "messageID", ev.MessageID)
		return
	}

	reply := h.manager.ProcessMessage(ctx, services.MessageEvent{
		MessageID: ev.MessageID,
		PageID:    pageID,
		UserID:    ev.SenderID,
		UserName:  ev.SenderName,
		Message:   ev.Text,
	})

	sendErr := h.deliverMessage(ctx, pageID, ev.SenderID, reply.Text)
	h.metrics.ObserveDelivery("messenger", sendErr)

	inbox.ReplyText = reply.Text
	inbox.Status = models.StatusReplied
	if sendErr != nil {
		inbox.Status = models.StatusFailed
	} else {
		repliedAt := h.now()
		inbox.RepliedAt = &repliedAt
	}
	if err := h.store.SaveInbox(ctx, inbox); err != nil {
		slog.Error("Failed to save inbox message", "error", err, "messageID", ev.MessageID)
	}

	h.recordResponse(ctx, "message", ev.MessageID, pageID, ev.SenderID, ev.Text, reply)

	eventType := services.EventMessageReplied
	if sendErr != nil {
		eventType = services.EventReplyFailed
	}
	h.feed.Broadcast(services.BroadcastMessage{
		PageID: pageID,
		Type:   eventType,
		Data: map[string]interface{}{
			"message_id": ev.MessageID,
			"sender_id":  ev.SenderID,
			"message":    ev.Text,
			"reply":      reply.Text,
			"source":     reply.Source,
			"intent":     reply.Intent,
		},
	})

	slog.Info("Message processed",
		"messageID", ev.MessageID,
		"pageID", pageID,
		"source", reply.Source,
		"status", inbox.Status,
	)
}

func (h *EventHandler) deliverMessage(ctx context.Context, pageID, recipientID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	token, err := h.store.PageAccessToken(ctx, pageID)
	if err != nil {
		return err
	}
	if err := h.limiter.Wait(ctx, pageID); err != nil {
		return err
	}
	return h.sender.SendMessengerReply(ctx, recipientID, text, token)
}
