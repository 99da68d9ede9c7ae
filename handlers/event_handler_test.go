package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

type fakeEventStore struct {
	mu        sync.Mutex
	enabled   bool
	tokenErr  error
	claims    map[string]string
	comments  []models.Comment
	inbox     []models.InboxMessage
	responses []models.Response
}

func (f *fakeEventStore) Status(context.Context, string) (bool, error) { return f.enabled, nil }

func (f *fakeEventStore) PageAccessToken(context.Context, string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "page-token", nil
}

// claim mirrors the store: an id is free when unseen or failed. Must hold mu.
func (f *fakeEventStore) claim(id, status string) bool {
	if current, ok := f.claims[id]; ok && current != models.StatusFailed {
		return false
	}
	f.setStatus(id, status)
	return true
}

func (f *fakeEventStore) setStatus(id, status string) {
	if f.claims == nil {
		f.claims = map[string]string{}
	}
	f.claims[id] = status
}

func (f *fakeEventStore) ClaimComment(_ context.Context, c *models.Comment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.claim("comment:"+c.CommentID, c.Status) {
		return false, nil
	}
	f.comments = append(f.comments, *c)
	return true, nil
}

func (f *fakeEventStore) ClaimMessage(_ context.Context, m *models.InboxMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.claim("message:"+m.MessageID, m.Status) {
		return false, nil
	}
	f.inbox = append(f.inbox, *m)
	return true, nil
}

func (f *fakeEventStore) SaveComment(_ context.Context, c *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setStatus("comment:"+c.CommentID, c.Status)
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeEventStore) SaveInbox(_ context.Context, m *models.InboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setStatus("message:"+m.MessageID, m.Status)
	f.inbox = append(f.inbox, *m)
	return nil
}

func (f *fakeEventStore) SaveResponse(_ context.Context, r *models.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, *r)
	return nil
}

type delivery struct {
	target, text, token string
}

type fakeReplySender struct {
	comments []delivery
	messages []delivery
	err      error
}

func (f *fakeReplySender) ReplyToComment(_ context.Context, commentID, message, token string) (*services.CommentResponse, error) {
	f.comments = append(f.comments, delivery{commentID, message, token})
	if f.err != nil {
		return nil, f.err
	}
	return &services.CommentResponse{ID: "reply-1"}, nil
}

func (f *fakeReplySender) SendMessengerReply(_ context.Context, recipientID, message, token string) error {
	f.messages = append(f.messages, delivery{recipientID, message, token})
	return f.err
}

// cannedManager answers every message from the canned table
func cannedManager() *services.ResponseManager {
	return services.NewResponseManager(services.ResponseManagerConfig{})
}

func TestHandleComment_RepliesAndRecords(t *testing.T) {
	store := &fakeEventStore{enabled: true}
	sender := &fakeReplySender{}
	h := NewEventHandler(cannedManager(), store, sender, nil, nil, nil)

	h.HandleComment(context.Background(), CommentEvent{
		CommentID:  "c-1",
		PostID:     "post-1",
		SenderID:   "user-1",
		SenderName: "منى",
		Message:    "شكرا",
	}, "page-1")

	require.Len(t, sender.comments, 1)
	assert.Equal(t, "c-1", sender.comments[0].target)
	assert.Equal(t, "page-token", sender.comments[0].token)
	assert.Contains(t, sender.comments[0].text, "العفو")

	require.Len(t, store.comments, 2)
	assert.Equal(t, models.StatusPending, store.comments[0].Status)
	assert.Equal(t, models.StatusReplied, store.comments[1].Status)
	assert.NotNil(t, store.comments[1].RepliedAt)

	require.Len(t, store.responses, 1)
	assert.Equal(t, "comment", store.responses[0].Type)
	assert.Equal(t, models.SourceCanned, store.responses[0].Source)
}

func TestHandleComment_Skips(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeEventStore
		ev    CommentEvent
	}{
		{"own comment", &fakeEventStore{enabled: true}, CommentEvent{CommentID: "c", SenderID: "page-1", Message: "x"}},
		{"no sender", &fakeEventStore{enabled: true}, CommentEvent{CommentID: "c", Message: "x"}},
		{"disabled", &fakeEventStore{enabled: false}, CommentEvent{CommentID: "c", SenderID: "u", Message: "x"}},
		{"already answered", &fakeEventStore{enabled: true, claims: map[string]string{"comment:c": models.StatusReplied}}, CommentEvent{CommentID: "c", SenderID: "u", Message: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeReplySender{}
			NewEventHandler(cannedManager(), tt.store, sender, nil, nil, nil).HandleComment(context.Background(), tt.ev, "page-1")

			assert.Empty(t, sender.comments)
			assert.Empty(t, tt.store.comments)
		})
	}
}

func TestHandleComment_DeliveryFailure(t *testing.T) {
	store := &fakeEventStore{enabled: true}
	sender := &fakeReplySender{err: errors.New("graph down")}
	feed := services.NewWebSocketManager()
	defer feed.Close()

	NewEventHandler(cannedManager(), store, sender, nil, feed, nil).HandleComment(context.Background(), CommentEvent{
		CommentID: "c-2", SenderID: "u", Message: "مرحبا",
	}, "page-1")

	require.Len(t, store.comments, 2)
	assert.Equal(t, models.StatusFailed, store.comments[1].Status)
	assert.Nil(t, store.comments[1].RepliedAt)
	assert.NotEmpty(t, store.comments[1].ReplyText)
}

func TestHandleComment_MissingTokenIsFailure(t *testing.T) {
	store := &fakeEventStore{enabled: true, tokenErr: errors.New("no token")}
	sender := &fakeReplySender{}

	NewEventHandler(cannedManager(), store, sender, nil, nil, nil).HandleComment(context.Background(), CommentEvent{
		CommentID: "c-3", SenderID: "u", Message: "مرحبا",
	}, "page-1")

	assert.Empty(t, sender.comments)
	require.Len(t, store.comments, 2)
	assert.Equal(t, models.StatusFailed, store.comments[1].Status)
}

func TestHandleMessage_RepliesAndRecords(t *testing.T) {
	store := &fakeEventStore{enabled: true}
	sender := &fakeReplySender{}
	h := NewEventHandler(cannedManager(), store, sender, services.NewPageRateLimiter(60), nil, nil)

	h.HandleMessage(context.Background(), MessageEvent{
		MessageID: "m-1",
		SenderID:  "user-1",
		Text:      "ايه طرق الدفع",
		Timestamp: 1700000000000,
	}, "page-1")

	require.Len(t, sender.messages, 1)
	assert.Equal(t, "user-1", sender.messages[0].target)
	assert.Contains(t, sender.messages[0].text, "نقبل الدفع")

	require.Len(t, store.inbox, 2)
	assert.Equal(t, models.StatusPending, store.inbox[0].Status)
	assert.Equal(t, models.StatusReplied, store.inbox[1].Status)
	assert.Equal(t, int64(1700000000000), store.inbox[1].CreatedAt.UnixMilli())

	require.Len(t, store.responses, 1)
	assert.Equal(t, "message", store.responses[0].Type)
}

func TestHandleMessage_Skips(t *testing.T) {
	for name, ev := range map[string]MessageEvent{
		"echo from page": {MessageID: "m", SenderID: "page-1", Text: "x"},
		"no text":        {MessageID: "m", SenderID: "u"},
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeEventStore{enabled: true}
			sender := &fakeReplySender{}
			NewEventHandler(cannedManager(), store, sender, nil, nil, nil).HandleMessage(context.Background(), ev, "page-1")

			assert.Empty(t, sender.messages)
			assert.Empty(t, store.inbox)
		})
	}

	store := &fakeEventStore{enabled: false}
	sender := &fakeReplySender{}
	NewEventHandler(cannedManager(), store, sender, nil, nil, nil).HandleMessage(context.Background(), MessageEvent{MessageID: "m", SenderID: "u", Text: "x"}, "page-1")
	assert.Empty(t, sender.messages)
}

func TestHandleMessage_RedeliveryRepliesOnce(t *testing.T) {
	store := &fakeEventStore{enabled: true}
	sender := &fakeReplySender{}
	h := NewEventHandler(cannedManager(), store, sender, nil, nil, nil)

	ev := MessageEvent{MessageID: "m-1", SenderID: "user-1", Text: "مرحبا"}
	h.HandleMessage(context.Background(), ev, "page-1")
	h.HandleMessage(context.Background(), ev, "page-1")

	assert.Len(t, sender.messages, 1)
	assert.Len(t, store.responses, 1)
}

func TestHandleComment_PendingIsNotAnsweredAgain(t *testing.T) {
	store := &fakeEventStore{enabled: true, claims: map[string]string{"comment:c-1": models.StatusPending}}
	sender := &fakeReplySender{}

	NewEventHandler(cannedManager(), store, sender, nil, nil, nil).HandleComment(context.Background(), CommentEvent{
		CommentID: "c-1", SenderID: "u", Message: "مرحبا",
	}, "page-1")

	assert.Empty(t, sender.comments)
	assert.Empty(t, store.comments)
}

func TestHandleComment_FailedIsRetried(t *testing.T) {
	store := &fakeEventStore{enabled: true, claims: map[string]string{"comment:c-1": models.StatusFailed}}
	sender := &fakeReplySender{}

	NewEventHandler(cannedManager(), store, sender, nil, nil, nil).HandleComment(context.Background(), CommentEvent{
		CommentID: "c-1", SenderID: "u", Message: "مرحبا",
	}, "page-1")

	assert.Len(t, sender.comments, 1)
	require.Len(t, store.comments, 2)
	assert.Equal(t, models.StatusReplied, store.comments[1].Status)
}

func TestHandleMessage_ConcurrentDeliveriesReplyOnce(t *testing.T) {
	store := &fakeEventStore{enabled: true}
	sender := &lockedReplySender{}
	h := NewEventHandler(cannedManager(), store, sender, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleMessage(context.Background(), MessageEvent{MessageID: "m-9", SenderID: "u", Text: "مرحبا"}, "page-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sender.count())
}

type lockedReplySender struct {
	mu   sync.Mutex
	sent int
}

func (l *lockedReplySender) ReplyToComment(context.Context, string, string, string) (*services.CommentResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent++
	return &services.CommentResponse{ID: "reply"}, nil
}

func (l *lockedReplySender) SendMessengerReply(context.Context, string, string, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent++
	return nil
}

func (l *lockedReplySender) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}
