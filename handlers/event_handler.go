package handlers

import (
	"context"
	"log/slog"
	"time"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

// EventStore is the persistence the webhook handlers need
type EventStore interface {
	Status(ctx context.Context, service string) (bool, error)
	PageAccessToken(ctx context.Context, pageID string) (string, error)
	ClaimComment(ctx context.Context, comment *models.Comment) (bool, error)
	ClaimMessage(ctx context.Context, msg *models.InboxMessage) (bool, error)
	SaveComment(ctx context.Context, comment *models.Comment) error
	SaveInbox(ctx context.Context, msg *models.InboxMessage) error
	SaveResponse(ctx context.Context, response *models.Response) error
}

// ReplySender delivers replies to Facebook
type ReplySender interface {
	ReplyToComment(ctx context.Context, commentID, message, pageAccessToken string) (*services.CommentResponse, error)
	SendMessengerReply(ctx context.Context, recipientID, message, pageAccessToken string) error
}

// EventHandler answers webhook comments and messages and delivers the replies
type EventHandler struct {
	manager *services.ResponseManager
	store   EventStore
	sender  ReplySender
	limiter *services.PageRateLimiter
	feed    *services.WebSocketManager
	metrics *services.Metrics
	now     func() time.Time
}

// NewEventHandler creates an EventHandler. limiter, feed and metrics may be nil.
func NewEventHandler(manager *services.ResponseManager, store EventStore, sender ReplySender, limiter *services.PageRateLimiter, feed *services.WebSocketManager, metrics *services.Metrics) *EventHandler {
	return &EventHandler{
		manager: manager,
		store:   store,
		sender:  sender,
		limiter: limiter,
		feed:    feed,
		metrics: metrics,
		now:     time.Now,
	}
}

// deliveryTimeout bounds sending one reply, rate limiting included
const deliveryTimeout = 30 * time.Second

func (h *EventHandler) recordResponse(ctx context.Context, kind, eventID, pageID, userID, original string, reply services.Reply) {
	response := &models.Response{
		Type:      kind,
		EventID:   eventID,
		PageID:    pageID,
		UserID:    userID,
		Original:  original,
		Response:  reply.Text,
		Source:    reply.Source,
		Intent:    reply.Intent,
		Timestamp: h.now(),
	}
	if err := h.store.SaveResponse(ctx, response); err != nil {
		slog.Error("Failed to save response", "error", err, "eventID", eventID)
	}
}
