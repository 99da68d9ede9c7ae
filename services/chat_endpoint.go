package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// chatEndpoint is an OpenAI-compatible chat endpoint reached through langchaingo.
// Both generative backends speak this protocol and differ only in endpoint, model and
// request options.
type chatEndpoint struct {
	backend Backend
	llm     *openai.LLM
	options []llms.CallOption
}

func newChatEndpoint(backend Backend, model, apiKey, baseURL string, client *http.Client, options ...llms.CallOption) (*chatEndpoint, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
		openai.WithHTTPClient(&responseRecorder{client: client}),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, &TransportError{Backend: backend, Err: err}
	}
	return &chatEndpoint{
		backend: backend,
		llm:     llm,
		options: append([]llms.CallOption{llms.WithMaxTokens(150), llms.WithTemperature(0.7)}, options...),
	}, nil
}

// complete sends one request and never retries
func (c *chatEndpoint) complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{}
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	call := &httpOutcome{}
	resp, err := c.llm.GenerateContent(withOutcome(ctx, call), messages, c.options...)
	if err != nil {
		return "", c.classify(call, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &DataError{Backend: c.backend, Reason: "no choices"}
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", &DataError{Backend: c.backend, Reason: "empty content"}
	}
	return text, nil
}

// classify splits a failed call into transport failures (no answer or non-2xx) and
// answers that could not be decoded.
func (c *chatEndpoint) classify(call *httpOutcome, err error) error {
	switch {
	case errors.Is(err, openai.ErrEmptyResponse):
		return &DataError{Backend: c.backend, Reason: "no choices", Err: err}
	case call.status == 0:
		return &TransportError{Backend: c.backend, Err: err}
	case call.status < 200 || call.status > 299:
		return &TransportError{Backend: c.backend, StatusCode: call.status, Body: call.body, Err: err}
	default:
		return &DataError{Backend: c.backend, Reason: "decode body", Err: err}
	}
}

// httpOutcome is what the provider answered to one call
type httpOutcome struct {
	status int
	body   string
}

type outcomeKey struct{}

func withOutcome(ctx context.Context, call *httpOutcome) context.Context {
	return context.WithValue(ctx, outcomeKey{}, call)
}

// responseRecorder notes the status and error body of each response on the
// httpOutcome carried by the request context.
type responseRecorder struct {
	client *http.Client
}

func (r *responseRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	call, ok := req.Context().Value(outcomeKey{}).(*httpOutcome)
	if !ok {
		return resp, nil
	}
	call.status = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	call.body = string(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
