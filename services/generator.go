package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"autoreply-bot/models"
)

// ErrNoCredential is returned when the selected backend has no stored API key.
// No network call is made.
var ErrNoCredential = errors.New("no AI credential configured")

// TransportError is a failed or non-2xx call to a provider
type TransportError struct {
	Backend    Backend
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Backend, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataError is a provider response that could not be turned into reply text
type DataError struct {
	Backend Backend
	Reason  string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned malformed response: %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s returned malformed response: %s", e.Backend, e.Reason)
}

func (e *DataError) Unwrap() error { return e.Err }

// Backend is the generative provider chosen for a request
type Backend int

const (
	BackendNone Backend = iota
	BackendPrimary
	BackendSecondary
)

func (b Backend) String() string {
	switch b {
	case BackendPrimary:
		return "openai"
	case BackendSecondary:
		return "deepseek"
	default:
		return "none"
	}
}

// BackendSelection is the backend resolved for one request together with its key
type BackendSelection struct {
	Backend Backend
	APIKey  string
}

// ResolveBackend picks the primary backend when its key is present, else the secondary,
// else none. Store errors count as a missing key.
func ResolveBackend(ctx context.Context, store CredentialStore) BackendSelection {
	if store == nil {
		return BackendSelection{Backend: BackendNone}
	}
	if key, err := store.Token(ctx, models.ServiceOpenAI); err == nil && strings.TrimSpace(key) != "" {
		return BackendSelection{Backend: BackendPrimary, APIKey: key}
	}
	if key, err := store.Token(ctx, models.ServiceDeepSeek); err == nil && strings.TrimSpace(key) != "" {
		return BackendSelection{Backend: BackendSecondary, APIKey: key}
	}
	return BackendSelection{Backend: BackendNone}
}

// Prompt is everything a backend needs to produce a reply
type Prompt struct {
	Persona   string
	Context   string
	Message   string
	Variables models.VariableMap
}

// userContent renders the context, message and variables into the user turn
func (p Prompt) userContent() string {
	var b strings.Builder
	if p.Context != "" {
		b.WriteString("السياق: ")
		b.WriteString(p.Context)
		b.WriteString("\n")
	}
	b.WriteString("الرسالة: ")
	b.WriteString(p.Message)
	if len(p.Variables) > 0 {
		if vars, err := json.Marshal(p.Variables); err == nil {
			b.WriteString("\nاستخدم المتغيرات التالية إذا لزم الأمر: ")
			b.Write(vars)
		}
	}
	return b.String()
}

// Generator produces reply text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeneratorOptions configures the provider clients
type GeneratorOptions struct {
	OpenAIBaseURL   string
	DeepSeekBaseURL string
	HTTPClient      *http.Client
}

// GeneratorFactory builds the client for a resolved backend
type GeneratorFactory func(sel BackendSelection) (Generator, error)

// NewGeneratorFactory returns a factory producing OpenAI or DeepSeek clients
func NewGeneratorFactory(opts GeneratorOptions) GeneratorFactory {
	return func(sel BackendSelection) (Generator, error) {
		if strings.TrimSpace(sel.APIKey) == "" {
			return nil, ErrNoCredential
		}
		switch sel.Backend {
		case BackendPrimary:
			return NewOpenAIGenerator(sel.APIKey, opts.OpenAIBaseURL, opts.HTTPClient)
		case BackendSecondary:
			return NewDeepSeekGenerator(sel.APIKey, opts.DeepSeekBaseURL, opts.HTTPClient)
		default:
			return nil, ErrNoCredential
		}
	}
}

// Personas frame the model for each inquiry context
var personas = map[models.InquiryContext]string{
	models.ContextCustomer: `أنت مساعد خدمة عملاء ودي ومحترف لشركة تجارة إلكترونية مصرية.
مهمتك مساعدة العملاء في الإجابة على استفسارات المنتجات والأسعار، تقديم معلومات عن حالة الطلبات، وحل المشكلات والشكاوى.
قواعد الرد: كن ودوداً ومحترفاً، استخدم العربية الفصحى مع بعض العامية المصرية، لا تبالغ في وصف المنتجات، وإذا لم تكن متأكداً اطلب من العميل الانتظار للتحقق.`,
	models.ContextAssistant: `أنت مساعد ذكي متخصص في إدارة أنظمة التواصل والطلبات.
مهمتك مساعدة المسؤول والمناديب في شرح وظائف النظام خطوة بخطوة، تقديم نصائح لتحسين الأداء، وحل المشكلات التقنية.
قواعد الرد: استخدم لغة تقنية دقيقة وقدم أمثلة عملية.`,
	models.ContextAdmin: `أنت مستشار إداري متخصص في إدارة الأعمال والتجارة الإلكترونية.
مهمتك مساعدة إدارة الشركة في تحليل أداء المبيعات والطلبات، تحليل سلوك العملاء، ومتابعة أداء المناديب.
قواعد الرد: استخدم لغة إدارية احترافية وركز على النتائج والتوصيات.`,
}

// PersonaFor returns the system framing for a context
func PersonaFor(ctxType models.InquiryContext) string {
	if p, ok := personas[ctxType]; ok {
		return p
	}
	return personas[models.ContextCustomer]
}
