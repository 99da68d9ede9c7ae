package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/handlers"
	"autoreply-bot/services"
)

// inlineDispatcher runs accepted jobs immediately and rejects the rest
type inlineDispatcher struct {
	capacity int
	kinds    []string
}

func (d *inlineDispatcher) Submit(job services.Job) error {
	if len(d.kinds) >= d.capacity {
		return services.ErrQueueFull
	}
	d.kinds = append(d.kinds, job.Kind)
	job.Run(context.Background())
	return nil
}

type recordingProcessor struct {
	comments  []handlers.CommentEvent
	messages  []handlers.MessageEvent
	pages     []string
	deadlines int
}

func (r *recordingProcessor) HandleComment(ctx context.Context, ev handlers.CommentEvent, pageID string) {
	if _, ok := ctx.Deadline(); ok {
		r.deadlines++
	}
	r.comments = append(r.comments, ev)
	r.pages = append(r.pages, pageID)
}

func (r *recordingProcessor) HandleMessage(ctx context.Context, ev handlers.MessageEvent, pageID string) {
	if _, ok := ctx.Deadline(); ok {
		r.deadlines++
	}
	r.messages = append(r.messages, ev)
	r.pages = append(r.pages, pageID)
}

func newApp(capacity int) (*fiber.App, *inlineDispatcher, *recordingProcessor) {
	app := fiber.New()
	dispatcher := &inlineDispatcher{capacity: capacity}
	events := &recordingProcessor{}
	RegisterRoutes(app, "verify-me", dispatcher, events)
	return app, dispatcher, events
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const feedPayload = `{"object":"page","entry":[{"id":"page-1","time":1,
	"changes":[
		{"field":"feed","value":{"item":"comment","verb":"add","comment_id":"c-1","post_id":"post-1",
		 "from":{"id":"user-1","name":"منى"},"sender_id":"ignored","message":"بكام؟","created_time":1700000000}},
		{"field":"feed","value":{"item":"comment","verb":"edited","comment_id":"c-2","message":"x"}},
		{"field":"feed","value":{"item":"reaction","verb":"add"}}
	],
	"messaging":[
		{"sender":{"id":"user-2"},"recipient":{"id":"page-1"},"timestamp":1700000000000,"message":{"mid":"m-1","text":"مرحبا"}},
		{"sender":{"id":"page-1"},"recipient":{"id":"user-2"},"timestamp":1700000000001,"message":{"mid":"m-2","text":"رد","is_echo":true}},
		{"sender":{"id":"user-3"},"recipient":{"id":"page-1"},"timestamp":1700000000002}
	]}]}`

func TestVerifyWebhook(t *testing.T) {
	app, _, _ := newApp(10)

	code, body := send(t, app, httptest.NewRequest(http.MethodGet, "/webhook/?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "42", body)

	code, _ = send(t, app, httptest.NewRequest(http.MethodGet, "/webhook/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHandleWebhookEvent_QueuesCommentsAndMessages(t *testing.T) {
	app, dispatcher, events := newApp(10)

	code, body := send(t, app, post(feedPayload))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EVENT_RECEIVED", body)
	assert.ElementsMatch(t, []string{"message", "comment"}, dispatcher.kinds)

	require.Len(t, events.comments, 1)
	assert.Equal(t, handlers.CommentEvent{
		CommentID:   "c-1",
		PostID:      "post-1",
		SenderID:    "user-1",
		SenderName:  "منى",
		Message:     "بكام؟",
		CreatedTime: 1700000000,
	}, events.comments[0])

	require.Len(t, events.messages, 1)
	assert.Equal(t, "m-1", events.messages[0].MessageID)
	assert.Equal(t, int64(1700000000000), events.messages[0].Timestamp)
	assert.Equal(t, []string{"page-1", "page-1"}, events.pages)
	assert.Equal(t, 2, events.deadlines)
}

func TestHandleWebhookEvent_FullQueueAsksForRedelivery(t *testing.T) {
	app, dispatcher, _ := newApp(1)

	code, _ := send(t, app, post(feedPayload))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Len(t, dispatcher.kinds, 1)
}

func TestHandleWebhookEvent_RejectsOtherPayloads(t *testing.T) {
	app, dispatcher, _ := newApp(10)

	code, _ := send(t, app, post(`{"object":"instagram","entry":[]}`))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = send(t, app, post(`{not json`))
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Empty(t, dispatcher.kinds)
}
