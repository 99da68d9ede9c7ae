package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/models"
)

// fakeCredentials is an in-memory CredentialStore
type fakeCredentials struct {
	tokens   map[string]string
	statuses map[string]bool
	err      error
}

func (f *fakeCredentials) Token(_ context.Context, service string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.tokens[service], nil
}

func (f *fakeCredentials) Status(_ context.Context, service string) (bool, error) {
	return f.statuses[service], f.err
}

func TestResolveBackend(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		tokens map[string]string
		want   Backend
		key    string
	}{
		{"primary wins", map[string]string{models.ServiceOpenAI: "sk-1", models.ServiceDeepSeek: "ds-1"}, BackendPrimary, "sk-1"},
		{"secondary when primary missing", map[string]string{models.ServiceDeepSeek: "ds-1"}, BackendSecondary, "ds-1"},
		{"blank primary ignored", map[string]string{models.ServiceOpenAI: "  ", models.ServiceDeepSeek: "ds-1"}, BackendSecondary, "ds-1"},
		{"none", map[string]string{}, BackendNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := ResolveBackend(ctx, &fakeCredentials{tokens: tt.tokens})
			assert.Equal(t, tt.want, sel.Backend)
			assert.Equal(t, tt.key, sel.APIKey)
		})
	}
}

func TestResolveBackend_StoreErrorMeansNone(t *testing.T) {
	sel := ResolveBackend(context.Background(), &fakeCredentials{err: errors.New("db down")})
	assert.Equal(t, BackendNone, sel.Backend)

	assert.Equal(t, BackendNone, ResolveBackend(context.Background(), nil).Backend)
}

func TestGeneratorFactory_NoKey(t *testing.T) {
	factory := NewGeneratorFactory(GeneratorOptions{})

	_, err := factory(BackendSelection{Backend: BackendNone})
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = factory(BackendSelection{Backend: BackendSecondary, APIKey: ""})
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestPersonaFor(t *testing.T) {
	assert.Contains(t, PersonaFor(models.ContextCustomer), "خدمة عملاء")
	assert.Contains(t, PersonaFor(models.ContextAdmin), "مستشار إداري")
	assert.Equal(t, PersonaFor(models.ContextCustomer), PersonaFor("other"))
}

func TestPromptUserContent(t *testing.T) {
	p := Prompt{Context: "معلومات", Message: "السعر؟", Variables: models.VariableMap{"name": "علي"}}

	content := p.userContent()
	assert.True(t, strings.HasPrefix(content, "السياق: معلومات\n"))
	assert.Contains(t, content, "الرسالة: السعر؟")
	assert.Contains(t, content, `"name":"علي"`)
}

func chatCompletion(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func TestDeepSeekGenerate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletion("  أهلاً بك  "))
	}))
	defer server.Close()

	gen, err := NewDeepSeekGenerator("ds-key", server.URL, server.Client())
	require.NoError(t, err)
	text, err := gen.Generate(context.Background(), Prompt{Persona: "persona", Message: "مرحبا"})
	require.NoError(t, err)
	assert.Equal(t, "أهلاً بك", text)

	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "persona", got.Messages[0].Content)
	assert.Equal(t, 150, got.MaxTokens)
}

func TestDeepSeekGenerate_Non2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer server.Close()

	gen, err := NewDeepSeekGenerator("ds-key", server.URL, server.Client())
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), Prompt{Message: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.Contains(t, te.Body, "rate limited")
}

func TestDeepSeekGenerate_MalformedIsDataError(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   "<html>",
		"no choices": `{"choices":[]}`,
		"empty":      chatCompletion("   "),
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer server.Close()

			gen, err := NewDeepSeekGenerator("ds-key", server.URL, server.Client())
			require.NoError(t, err)
			_, err = gen.Generate(context.Background(), Prompt{Message: "x"})
			var de *DataError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestDeepSeekGenerate_NoKey(t *testing.T) {
	_, err := NewDeepSeekGenerator("", "http://127.0.0.1:1", nil)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestDeepSeekGenerate_BaseURLWithVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		io.WriteString(w, chatCompletion("تم"))
	}))
	defer server.Close()

	gen, err := NewDeepSeekGenerator("ds-key", server.URL+"/v1/", server.Client())
	require.NoError(t, err)
	text, err := gen.Generate(context.Background(), Prompt{Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, "تم", text)
}

func TestDeepSeekGenerate_UnreachableIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	gen, err := NewDeepSeekGenerator("ds-key", url, nil)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), Prompt{Message: "x"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletion("السعر 200 جنيه"))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("sk-test", server.URL, server.Client())
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Prompt{Persona: "p", Message: "بكام؟"})
	require.NoError(t, err)
	assert.Equal(t, "السعر 200 جنيه", text)
}

func TestOpenAIGenerate_ServerErrorIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom"}}`)
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("sk-test", server.URL, server.Client())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Prompt{Message: "x"})
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestNewOpenAIGenerator_NoKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", "", nil)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestErrorSummary_Truncates(t *testing.T) {
	long := strings.Repeat("خ", 400)
	got := errorSummary(errors.New(long))

	assert.True(t, strings.HasPrefix(got, "AI generation failed: "))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, len([]rune("AI generation failed: "))+303, len([]rune(got)))
}
