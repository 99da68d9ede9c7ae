package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autoreply-bot/models"
)

const (
	googleDriveAPI        = "https://www.googleapis.com/drive/v3"
	connectionTestTimeout = 10 * time.Second
)

// ConnectionTester checks the third-party services with their stored credentials.
// It never writes credentials and never retries.
type ConnectionTester struct {
	credentials CredentialStore
	graphURL    string
	driveURL    string
	client      *http.Client
	metrics     *Metrics
}

// ConnectionTesterOptions overrides the checked endpoints
type ConnectionTesterOptions struct {
	GraphBaseURL string
	DriveBaseURL string
	HTTPClient   *http.Client
	Metrics      *Metrics
}

// NewConnectionTester creates a tester reading tokens from credentials
func NewConnectionTester(credentials CredentialStore, opts ConnectionTesterOptions) *ConnectionTester {
	t := &ConnectionTester{
		credentials: credentials,
		graphURL:    strings.TrimRight(opts.GraphBaseURL, "/"),
		driveURL:    strings.TrimRight(opts.DriveBaseURL, "/"),
		client:      opts.HTTPClient,
		metrics:     opts.Metrics,
	}
	if t.graphURL == "" {
		t.graphURL = fbGraphAPI
	}
	if t.driveURL == "" {
		t.driveURL = googleDriveAPI
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: connectionTestTimeout}
	}
	return t
}

// TestableServices are the services with a connection check
var TestableServices = []string{models.ServiceFacebook, models.ServiceWhatsApp, models.ServiceGoogleSheet}

// Test checks one service with its stored token
func (t *ConnectionTester) Test(ctx context.Context, service string) models.ConnectionResult {
	var token string
	if t.credentials != nil {
		var err error
		token, err = t.credentials.Token(ctx, service)
		if err != nil {
			slog.Warn("Failed to read credential", "service", service, "error", err)
		}
	}

	var result models.ConnectionResult
	switch service {
	case models.ServiceFacebook:
		result = t.TestFacebook(ctx, token)
	case models.ServiceWhatsApp:
		result = t.TestWhatsApp(ctx, token)
	case models.ServiceGoogleSheet:
		result = t.TestGoogleSheets(ctx, token)
	default:
		result = models.ConnectionResult{Status: models.ConnectionError, Message: "Service not supported"}
	}
	result.Service = service

	t.metrics.ObserveConnectionTest(service, result.Status)
	return result
}

// TestAll checks every testable service concurrently
func (t *ConnectionTester) TestAll(ctx context.Context) map[string]models.ConnectionResult {
	results := make([]models.ConnectionResult, len(TestableServices))

	g, gctx := errgroup.WithContext(ctx)
	for i, service := range TestableServices {
		i, service := i, service
		g.Go(func() error {
			results[i] = t.Test(gctx, service)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]models.ConnectionResult, len(results))
	for _, r := range results {
		out[r.Service] = r
	}
	return out
}

// TestFacebook checks a page or user token against the Graph API
func (t *ConnectionTester) TestFacebook(ctx context.Context, accessToken string) models.ConnectionResult {
	endpoint := fmt.Sprintf("%s/me?access_token=%s", t.graphURL, url.QueryEscape(accessToken))
	return t.check(ctx, endpoint, "")
}

// TestWhatsApp checks a WhatsApp Business token against the Graph API
func (t *ConnectionTester) TestWhatsApp(ctx context.Context, accessToken string) models.ConnectionResult {
	return t.check(ctx, t.graphURL+"/me", accessToken)
}

// TestGoogleSheets lists the spreadsheets visible to the token
func (t *ConnectionTester) TestGoogleSheets(ctx context.Context, accessToken string) models.ConnectionResult {
	q := url.Values{"q": {`mimeType="application/vnd.google-apps.spreadsheet"`}}
	return t.check(ctx, t.driveURL+"/files?"+q.Encode(), accessToken)
}

func (t *ConnectionTester) check(ctx context.Context, endpoint, bearer string) models.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, connectionTestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return connectionFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return connectionFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return connectionFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ConnectionResult{
			Status:  models.ConnectionError,
			Message: fmt.Sprintf("فشل الاتصال: %d", resp.StatusCode),
			Error:   string(body),
		}
	}

	var data interface{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return connectionFailure(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return models.ConnectionResult{
		Status:  models.ConnectionSuccess,
		Message: "الاتصال بنجاح",
		Data:    data,
	}
}

func connectionFailure(err error) models.ConnectionResult {
	return models.ConnectionResult{
		Status:  models.ConnectionError,
		Message: "خطأ في الاتصال",
		Error:   err.Error(),
	}
}
