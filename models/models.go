package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment represents a Facebook comment received through the feed webhook
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CommentID string             `bson:"comment_id" json:"comment_id"`
	PostID    string             `bson:"post_id" json:"post_id"`
	PageID    string             `bson:"page_id" json:"page_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	UserName  string             `bson:"user_name" json:"user_name"`
	Message   string             `bson:"message" json:"message"`
	ReplyText string             `bson:"reply_text,omitempty" json:"reply_text,omitempty"`
	Status    string             `bson:"status" json:"status"` // "pending", "replied", "failed"
	CreatedAt time.Time          `bson:"created_time" json:"created_time"`
	RepliedAt *time.Time         `bson:"replied_at,omitempty" json:"replied_at,omitempty"`
}

// InboxMessage represents a direct Messenger message sent to a page
type InboxMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID string             `bson:"message_id" json:"message_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	UserName  string             `bson:"user_name,omitempty" json:"user_name,omitempty"`
	PageID    string             `bson:"page_id" json:"page_id"`
	Message   string             `bson:"message" json:"message"`
	ReplyText string             `bson:"reply_text,omitempty" json:"reply_text,omitempty"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_time" json:"created_time"`
	RepliedAt *time.Time         `bson:"replied_at,omitempty" json:"replied_at,omitempty"`
}

// Reply statuses shared by comments and inbox messages
const (
	StatusPending = "pending"
	StatusReplied = "replied"
	StatusFailed  = "failed"
)

// Page holds the operator-managed settings of a Facebook page
type Page struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PageID         string             `bson:"page_id" json:"page_id"`
	PageName       string             `bson:"page_name" json:"page_name"`
	WelcomeMessage string             `bson:"welcome_message,omitempty" json:"welcome_message,omitempty"`
	AccessToken    string             `bson:"access_token,omitempty" json:"-"`
	Status         bool               `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Post holds the custom auto-reply configured for a single post
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    string             `bson:"post_id" json:"post_id"`
	PageID    string             `bson:"page_id" json:"page_id"`
	AutoReply string             `bson:"auto_reply,omitempty" json:"auto_reply,omitempty"`
	Status    bool               `bson:"status" json:"status"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Response records a reply produced by the pipeline for analytics
type Response struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type      string             `bson:"type" json:"type"` // "comment" or "message"
	EventID   string             `bson:"event_id" json:"event_id"`
	PageID    string             `bson:"page_id" json:"page_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Original  string             `bson:"original" json:"original"`
	Response  string             `bson:"response" json:"response"`
	Source    ReplySource        `bson:"source" json:"source"`
	Intent    IntentCategory     `bson:"intent" json:"intent"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// LogEntry is an operational event shown to operators
type LogEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Level     string             `bson:"level" json:"level"`
	Message   string             `bson:"message" json:"message"`
	Service   string             `bson:"service" json:"service"`
	Details   string             `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
