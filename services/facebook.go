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
)

const fbGraphAPI = "https://graph.facebook.com/v18.0"

// FacebookClient delivers replies through the Graph API
type FacebookClient struct {
	baseURL string
	client  *http.Client
}

// NewFacebookClient creates a Graph API client. An empty baseURL uses the public API.
func NewFacebookClient(baseURL string, client *http.Client) *FacebookClient {
	if baseURL == "" {
		baseURL = fbGraphAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &FacebookClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// CommentResponse represents the response from Facebook when creating a comment
type CommentResponse struct {
	ID string `json:"id"`
}

// SendMessengerReply sends a reply message via Messenger
func (f *FacebookClient) SendMessengerReply(ctx context.Context, recipientID, message, pageAccessToken string) error {
	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", f.baseURL, url.QueryEscape(pageAccessToken))

	payload := map[string]interface{}{
		"recipient": map[string]string{
			"id": recipientID,
		},
		"message": map[string]string{
			"text": message,
		},
	}

	if _, err := f.post(ctx, endpoint, payload); err != nil {
		slog.Error("Failed to send messenger reply", "recipientID", recipientID, "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// ReplyToComment replies to a Facebook comment and returns the created comment
func (f *FacebookClient) ReplyToComment(ctx context.Context, commentID, message, pageAccessToken string) (*CommentResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/comments?access_token=%s", f.baseURL, commentID, url.QueryEscape(pageAccessToken))

	body, err := f.post(ctx, endpoint, map[string]string{"message": message})
	if err != nil {
		slog.Error("Failed to reply to comment", "commentID", commentID, "error", err)
		return nil, fmt.Errorf("failed to reply to comment: %w", err)
	}

	var commentResp CommentResponse
	if err := json.Unmarshal(body, &commentResp); err != nil {
		return nil, fmt.Errorf("failed to decode comment response: %w", err)
	}
	return &commentResp, nil
}

func (f *FacebookClient) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph API status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
