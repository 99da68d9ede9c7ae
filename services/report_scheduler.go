package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DailyReportSender is satisfied by WhatsAppReporter
type DailyReportSender interface {
	SendDailyReport(ctx context.Context, adminPhone string) error
}

// ParseDailyAt parses an "HH:MM" clock time
func ParseDailyAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid daily time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun returns the first hour:minute strictly after now, in now's location
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartDailyReportScheduler sends the daily report to adminPhone every day at dailyAt
// until ctx is done
func StartDailyReportScheduler(ctx context.Context, sender DailyReportSender, adminPhone, dailyAt string) error {
	hour, minute, err := ParseDailyAt(dailyAt)
	if err != nil {
		return err
	}

	go func() {
		for {
			next := NextRun(time.Now(), hour, minute)
			slog.Info("Next daily report scheduled", "at", next.Format(time.RFC3339), "adminPhone", adminPhone)

			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				sendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if err := sender.SendDailyReport(sendCtx, adminPhone); err != nil {
					slog.Error("Failed scheduled daily report", "error", err)
				} else {
					slog.Info("Completed scheduled daily report", "adminPhone", adminPhone)
				}
				cancel()

			case <-ctx.Done():
				timer.Stop()
				slog.Info("Stopping daily report scheduler")
				return
			}
		}
	}()

	return nil
}
