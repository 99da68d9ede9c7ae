package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"
)

const (
	deepSeekAPIURL = "https://api.deepseek.com"
	deepSeekModel  = "deepseek-chat"
)

// DeepSeekGenerator calls the DeepSeek chat completions API, which speaks the OpenAI
// protocol under /v1
type DeepSeekGenerator struct {
	chat *chatEndpoint
}

// NewDeepSeekGenerator creates a DeepSeek client. An empty baseURL uses the public API.
func NewDeepSeekGenerator(apiKey, baseURL string, client *http.Client) (*DeepSeekGenerator, error) {
	if baseURL == "" {
		baseURL = deepSeekAPIURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	// DeepSeek reads max_tokens, not max_completion_tokens
	chat, err := newChatEndpoint(BackendSecondary, deepSeekModel, apiKey, baseURL, client,
		openai.WithLegacyMaxTokensField())
	if err != nil {
		return nil, err
	}
	return &DeepSeekGenerator{chat: chat}, nil
}

// Generate sends one chat completion request. It never retries.
func (g *DeepSeekGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	system := "أنت مساعد ذكي للرد على رسائل العملاء."
	if prompt.Persona != "" {
		system = prompt.Persona
	}

	text, err := g.chat.complete(ctx, system, prompt.userContent())
	if err != nil {
		slog.Error("DeepSeek request failed", "error", err)
		return "", err
	}
	slog.Info("DeepSeek response generated", "length", len(text))
	return text, nil
}

// errorSummary shortens provider bodies for the operational log
func errorSummary(err error) string {
	msg := []rune(err.Error())
	if len(msg) > 300 {
		msg = append(msg[:300], []rune("...")...)
	}
	return fmt.Sprintf("AI generation failed: %s", string(msg))
}
