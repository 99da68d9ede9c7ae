package handlers

import (
	"context"
	"log/slog"
	"time"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

// CommentEvent is a feed comment received through the webhook
type CommentEvent struct {
	CommentID   string
	PostID      string
	ParentID    string
	SenderID    string
	SenderName  string
	Message     string
	CreatedTime int64 // Unix timestamp
}

// HandleComment answers one feed comment and posts the reply under it
func (h *EventHandler) HandleComment(ctx context.Context, ev CommentEvent, pageID string) {
	if ev.SenderID == "" {
		slog.Error("No sender ID found in webhook data", "commentID", ev.CommentID)
		return
	}

	// Never answer the page's own comments, including our replies
	if ev.SenderID == pageID {
		slog.Info("Skipping page's own comment",
			"commentID", ev.CommentID,
			"pageID", pageID,
		)
		return
	}

	if !h.facebookEnabled(ctx) {
		slog.Info("Facebook auto-reply disabled, skipping comment", "commentID", ev.CommentID)
		return
	}

	createdAt := h.now()
	if ev.CreatedTime > 0 {
		createdAt = time.Unix(ev.CreatedTime, 0)
	}
	comment := &models.Comment{
		CommentID: ev.CommentID,
		PostID:    ev.PostID,
		PageID:    pageID,
		UserID:    ev.SenderID,
		UserName:  ev.SenderName,
		Message:   ev.Message,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}
	claimed, err := h.store.ClaimComment(ctx, comment)
	if err != nil {
		slog.Error("Failed to claim comment", "error", err, "commentID", ev.CommentID)
	} else if !claimed {
		slog.Info("Comment already handled", "commentID", ev.CommentID)
		return
	}

	reply := h.manager.ProcessComment(ctx, services.CommentEvent{
		CommentID: ev.CommentID,
		PostID:    ev.PostID,
		PageID:    pageID,
		UserID:    ev.SenderID,
		UserName:  ev.SenderName,
		Message:   ev.Message,
	})

	sendErr := h.deliverComment(ctx, pageID, ev.CommentID, reply.Text)
	h.metrics.ObserveDelivery("comment", sendErr)

	comment.ReplyText = reply.Text
	if sendErr != nil {
		comment.Status = models.StatusFailed
	} else {
		repliedAt := h.now()
		comment.Status = models.StatusReplied
		comment.RepliedAt = &repliedAt
	}
	if err := h.store.SaveComment(ctx, comment); err != nil {
		slog.Error("Failed to update comment", "error", err, "commentID", ev.CommentID)
	}

	h.recordResponse(ctx, "comment", ev.CommentID, pageID, ev.SenderID, ev.Message, reply)

	eventType := services.EventCommentReplied
	if sendErr != nil {
		eventType = services.EventReplyFailed
	}
	h.feed.Broadcast(services.BroadcastMessage{
		PageID: pageID,
		Type:   eventType,
		Data: map[string]interface{}{
			"comment_id": ev.CommentID,
			"post_id":    ev.PostID,
			"user_name":  ev.SenderName,
			"message":    ev.Message,
			"reply":      reply.Text,
			"source":     reply.Source,
			"intent":     reply.Intent,
		},
	})

	slog.Info("Comment processed",
		"commentID", ev.CommentID,
		"pageID", pageID,
		"source", reply.Source,
		"status", comment.Status,
	)
}

func (h *EventHandler) deliverComment(ctx context.Context, pageID, commentID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	token, err := h.store.PageAccessToken(ctx, pageID)
	if err != nil {
		return err
	}
	if err := h.limiter.Wait(ctx, pageID); err != nil {
		return err
	}
	_, err = h.sender.ReplyToComment(ctx, commentID, text, token)
	return err
}

// facebookEnabled reports whether the operator switched Facebook auto-replies on
func (h *EventHandler) facebookEnabled(ctx context.Context) bool {
	enabled, err := h.store.Status(ctx, models.ServiceFacebook)
	if err != nil {
		slog.Error("Failed to read facebook status", "error", err)
		return false
	}
	return enabled
}
