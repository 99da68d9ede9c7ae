package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autoreply-bot/models"
)

// WhatsAppClient sends text messages through the WhatsApp Business Cloud API
type WhatsAppClient struct {
	baseURL string
	client  *http.Client
}

// NewWhatsAppClient creates a Cloud API client. An empty baseURL uses the public Graph API.
func NewWhatsAppClient(baseURL string, client *http.Client) *WhatsAppClient {
	if baseURL == "" {
		baseURL = fbGraphAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WhatsAppClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// SendText delivers body to the phone number to
func (w *WhatsAppClient) SendText(ctx context.Context, accessToken, phoneNumberID, to, body string) error {
	if accessToken == "" {
		return fmt.Errorf("whatsapp: %w", ErrNoCredential)
	}
	if phoneNumberID == "" {
		return fmt.Errorf("whatsapp phone number id is not configured")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]string{
			"body": body,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/%s/messages", w.baseURL, phoneNumberID), bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Error("Failed to send WhatsApp message", "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("whatsapp API error: status %d", resp.StatusCode)
	}
	return nil
}

// TextSender delivers a text message to a phone number
type TextSender interface {
	SendText(ctx context.Context, accessToken, phoneNumberID, to, body string) error
}

// ReportRecorder persists generated reports
type ReportRecorder interface {
	SaveReport(ctx context.Context, report *models.ReportRecord) error
}

// WhatsAppReporter sends management and agent reports over WhatsApp
type WhatsAppReporter struct {
	manager       *ResponseManager
	sender        TextSender
	credentials   CredentialStore
	phoneNumberID string
	logs          LogSink
	recorder      ReportRecorder
	metrics       *Metrics
	now           func() time.Time
}

// NewWhatsAppReporter creates a reporter. recorder and metrics may be nil.
func NewWhatsAppReporter(manager *ResponseManager, sender TextSender, credentials CredentialStore, phoneNumberID string, logs LogSink, recorder ReportRecorder, metrics *Metrics) *WhatsAppReporter {
	if logs == nil {
		logs = slogSink{}
	}
	return &WhatsAppReporter{
		manager:       manager,
		sender:        sender,
		credentials:   credentials,
		phoneNumberID: phoneNumberID,
		logs:          logs,
		recorder:      recorder,
		metrics:       metrics,
		now:           time.Now,
	}
}

// SendDailyReport generates today's report and sends it to adminPhone
func (r *WhatsAppReporter) SendDailyReport(ctx context.Context, adminPhone string) error {
	report, err := r.manager.GenerateDailyReport(ctx, r.now())
	if err != nil {
		r.logs.Log(ctx, LevelError, fmt.Sprintf("Failed to send daily report: %v", err), "whatsapp_reporter")
		return err
	}

	if err := r.send(ctx, "daily", "التقرير اليومي", adminPhone, report); err != nil {
		r.logs.Log(ctx, LevelError, fmt.Sprintf("Failed to send daily report: %v", err), "whatsapp_reporter")
		return err
	}

	r.logs.Log(ctx, LevelInfo, fmt.Sprintf("Daily report sent to %s", adminPhone), "whatsapp_reporter")
	return nil
}

// SendAgentPerformanceReport sends an agent their figures for today
func (r *WhatsAppReporter) SendAgentPerformanceReport(ctx context.Context, agentPhone string, perf models.AgentPerformance) error {
	report := FormatAgentReport(r.now(), perf)
	if err := r.send(ctx, "agent", "تقرير أداء المندوب", agentPhone, report); err != nil {
		r.logs.Log(ctx, LevelError, fmt.Sprintf("Failed to send agent report: %v", err), "whatsapp_reporter")
		return err
	}
	return nil
}

func (r *WhatsAppReporter) send(ctx context.Context, kind, title, phone, body string) error {
	token := ""
	if r.credentials != nil {
		t, err := r.credentials.Token(ctx, models.ServiceWhatsApp)
		if err != nil {
			return fmt.Errorf("failed to read whatsapp token: %w", err)
		}
		token = t
	}

	sendErr := r.sender.SendText(ctx, token, r.phoneNumberID, phone, body)
	r.metrics.ObserveDelivery("whatsapp", sendErr)

	if r.recorder != nil {
		record := &models.ReportRecord{
			ReportType: kind,
			Title:      title,
			Content:    body,
			Recipients: []string{phone},
			Status:     "sent",
			CreatedAt:  r.now(),
		}
		if sendErr != nil {
			record.Status = "failed"
		} else {
			sentAt := r.now()
			record.SentAt = &sentAt
		}
		if err := r.recorder.SaveReport(ctx, record); err != nil {
			slog.Warn("Failed to record report", "kind", kind, "error", err)
		}
	}
	return sendErr
}
