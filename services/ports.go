package services

import (
	"context"
	"time"

	"autoreply-bot/models"
)

// CredentialStore exposes the stored service credentials. The pipeline only reads them.
type CredentialStore interface {
	// Token returns the access token for service, or "" when none is stored
	Token(ctx context.Context, service string) (string, error)
	Status(ctx context.Context, service string) (bool, error)
}

// LogSink records operational events. Implementations must not block the caller on failure.
type LogSink interface {
	Log(ctx context.Context, level, message, service string)
}

// PageStore exposes the operator-managed page and post settings
type PageStore interface {
	AutoReplyTemplate(ctx context.Context, postID string) (string, bool, error)
	PageName(ctx context.Context, pageID string) string
	WelcomeMessage(ctx context.Context, pageID string) (string, bool, error)
	IsFirstMessage(ctx context.Context, userID, pageID string) (bool, error)
}

// CounterSource supplies the aggregates behind the daily report
type CounterSource interface {
	DailyCounters(ctx context.Context, day time.Time) (models.ReportCounters, error)
}

// Log levels written to the LogSink
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// slogSink is the LogSink used when no store is configured
type slogSink struct{}

func (slogSink) Log(_ context.Context, level, message, service string) {
	logOperational(level, message, service)
}
