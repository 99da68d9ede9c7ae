package services

import (
	"context"
	"log/slog"
	"net/http"
)

const openAIModel = "gpt-3.5-turbo"

// OpenAIGenerator calls the OpenAI chat completions API through langchaingo
type OpenAIGenerator struct {
	chat *chatEndpoint
}

// NewOpenAIGenerator creates an OpenAI client. An empty baseURL uses the public API.
func NewOpenAIGenerator(apiKey, baseURL string, client *http.Client) (*OpenAIGenerator, error) {
	chat, err := newChatEndpoint(BackendPrimary, openAIModel, apiKey, baseURL, client)
	if err != nil {
		return nil, err
	}
	return &OpenAIGenerator{chat: chat}, nil
}

// Generate sends one chat completion request. It never retries.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	text, err := g.chat.complete(ctx, prompt.Persona, prompt.userContent())
	if err != nil {
		return "", err
	}
	slog.Info("OpenAI response generated", "length", len(text))
	return text, nil
}
