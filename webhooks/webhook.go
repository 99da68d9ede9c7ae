package webhooks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"autoreply-bot/handlers"
	"autoreply-bot/services"
)

// eventTimeout bounds the processing of one comment or message
const eventTimeout = 60 * time.Second

// Dispatcher queues webhook work
type Dispatcher interface {
	Submit(job services.Job) error
}

// EventProcessor answers comments and messages
type EventProcessor interface {
	HandleComment(ctx context.Context, ev handlers.CommentEvent, pageID string)
	HandleMessage(ctx context.Context, ev handlers.MessageEvent, pageID string)
}

func RegisterRoutes(app *fiber.App, verifyToken string, dispatcher Dispatcher, events EventProcessor) {
	webhook := app.Group("/webhook")

	// Webhook verification endpoint
	webhook.Get("/", verifyWebhook(verifyToken))

	// Webhook event handler
	webhook.Post("/", handleWebhookEvent(dispatcher, events))
}

// verifyWebhook handles Facebook webhook verification
func verifyWebhook(verifyToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && token == verifyToken {
			slog.Info("Webhook verified successfully")
			return c.SendString(challenge)
		}

		slog.Warn("Webhook verification failed", "mode", mode)
		return c.SendStatus(fiber.StatusForbidden)
	}
}

// handleWebhookEvent acknowledges the payload and queues one job per comment or message
func handleWebhookEvent(dispatcher Dispatcher, events EventProcessor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Payload
		if err := c.BodyParser(&body); err != nil {
			slog.Error("Failed to parse webhook body", "error", err)
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// Only process page events
		if body.Object != "page" {
			return c.SendStatus(fiber.StatusNotFound)
		}

		rejected := 0
		for _, job := range jobsFor(body, events) {
			if err := dispatcher.Submit(job); err != nil {
				if !errors.Is(err, services.ErrQueueFull) {
					slog.Error("Failed to queue webhook event", "error", err, "kind", job.Kind)
				}
				rejected++
			}
		}

		// Ask Facebook to redeliver when we had no room
		if rejected > 0 {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
		return c.SendString("EVENT_RECEIVED")
	}
}

// jobsFor turns a webhook payload into independent jobs
func jobsFor(body Payload, events EventProcessor) []services.Job {
	var jobs []services.Job

	for _, entry := range body.Entry {
		pageID := entry.PageID

		for _, m := range entry.Messaging {
			if !m.Inbound() {
				continue
			}
			ev := handlers.MessageEvent{
				MessageID: m.Message.MID,
				SenderID:  m.Sender.ID,
				Text:      m.Message.Text,
				Timestamp: m.Timestamp,
			}
			jobs = append(jobs, services.Job{
				Kind: "message",
				Run: func(ctx context.Context) {
					ctx, cancel := context.WithTimeout(ctx, eventTimeout)
					defer cancel()
					events.HandleMessage(ctx, ev, pageID)
				},
			})
		}

		for _, change := range entry.Changes {
			if !change.NewComment() {
				continue
			}
			senderID, senderName := change.Value.Commenter()
			ev := handlers.CommentEvent{
				CommentID:   change.Value.CommentID,
				PostID:      change.Value.PostID,
				ParentID:    change.Value.ParentID,
				SenderID:    senderID,
				SenderName:  senderName,
				Message:     change.Value.Message,
				CreatedTime: change.Value.CreatedTime,
			}
			jobs = append(jobs, services.Job{
				Kind: "comment",
				Run: func(ctx context.Context) {
					ctx, cancel := context.WithTimeout(ctx, eventTimeout)
					defer cancel()
					events.HandleComment(ctx, ev, pageID)
				},
			})
		}
	}

	return jobs
}
