package webhooks

// Payload is the body Facebook posts to the webhook
type Payload struct {
	Object string      `json:"object"`
	Entry  []PageEntry `json:"entry"`
}

// PageEntry groups the events of one page
type PageEntry struct {
	PageID    string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
	Changes   []FeedChange     `json:"changes,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

// MessagingEvent is a Messenger delivery; Timestamp is in milliseconds
type MessagingEvent struct {
	Sender    Participant     `json:"sender"`
	Recipient Participant     `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *InboundMessage `json:"message,omitempty"`
}

type InboundMessage struct {
	MID    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo,omitempty"`
}

// Inbound reports whether the event is a message a user sent to the page
func (m MessagingEvent) Inbound() bool {
	return m.Message != nil && !m.Message.IsEcho
}

// FeedChange is one change on the page feed
type FeedChange struct {
	Field string    `json:"field"`
	Value FeedValue `json:"value"`
}

type FeedValue struct {
	Item        string  `json:"item"`
	Verb        string  `json:"verb"`
	CommentID   string  `json:"comment_id"`
	PostID      string  `json:"post_id"`
	ParentID    string  `json:"parent_id"`
	SenderID    string  `json:"sender_id"`
	SenderName  string  `json:"sender_name"`
	From        *Author `json:"from,omitempty"`
	Message     string  `json:"message"`
	CreatedTime int64   `json:"created_time"` // Unix seconds
}

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewComment reports whether the change adds a comment. Edits, removals and reactions are ignored.
func (c FeedChange) NewComment() bool {
	if c.Field != "feed" || c.Value.Item != "comment" {
		return false
	}
	return c.Value.Verb == "" || c.Value.Verb == "add"
}

// Commenter returns the comment author, preferring the from object over the flat sender fields
func (v FeedValue) Commenter() (id, name string) {
	id, name = v.SenderID, v.SenderName
	if v.From != nil {
		if v.From.ID != "" {
			id = v.From.ID
		}
		if v.From.Name != "" {
			name = v.From.Name
		}
	}
	return id, name
}
