package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autoreply-bot/knowledge"
	"autoreply-bot/models"
)

// DefaultAITimeout bounds a single generative call
const DefaultAITimeout = 10 * time.Second

// defaultPageName is used when a page has no stored name
const defaultPageName = "الصفحة"

// ErrAITimeout is returned when the provider did not answer within the AI timeout
var ErrAITimeout = errors.New("AI request timed out")

// Request is one inbound event to answer
type Request struct {
	Message   string
	Context   models.InquiryContext
	Variables models.VariableMap

	// PostID selects a per-post auto-reply template
	PostID string
	// PageID and UserID select the per-page welcome message on a user's first message
	PageID       string
	UserID       string
	CheckWelcome bool

	// ExtraContext is appended to the synthesized context
	ExtraContext string
}

// Reply is the pipeline's answer and how it was produced
type Reply struct {
	Text    string                `json:"response"`
	Source  models.ReplySource    `json:"source"`
	Intent  models.IntentCategory `json:"intent,omitempty"`
	Backend string                `json:"backend,omitempty"`
}

// CommentEvent is a feed comment to answer
type CommentEvent struct {
	CommentID string
	PostID    string
	PageID    string
	UserID    string
	UserName  string
	Message   string
}

// MessageEvent is a direct message to answer
type MessageEvent struct {
	MessageID string
	PageID    string
	UserID    string
	UserName  string
	Message   string
}

// ResponseManagerConfig wires the collaborators of a ResponseManager.
// Nil collaborators are replaced by inert defaults.
type ResponseManagerConfig struct {
	Credentials CredentialStore
	Pages       PageStore
	Logs        LogSink
	Counters    CounterSource
	Knowledge   *knowledge.Base
	Memory      *ShopifyMemory
	Canned      *CannedTable
	Generators  GeneratorFactory
	AITimeout   time.Duration
	Metrics     *Metrics
}

// ResponseManager decides the reply to every inbound message and comment
type ResponseManager struct {
	credentials CredentialStore
	pages       PageStore
	logs        LogSink
	counters    CounterSource
	kb          *knowledge.Base
	memory      *ShopifyMemory
	canned      *CannedTable
	generators  GeneratorFactory
	aiTimeout   time.Duration
	metrics     *Metrics
}

// NewResponseManager creates a ResponseManager from cfg
func NewResponseManager(cfg ResponseManagerConfig) *ResponseManager {
	m := &ResponseManager{
		credentials: cfg.Credentials,
		pages:       cfg.Pages,
		logs:        cfg.Logs,
		counters:    cfg.Counters,
		kb:          cfg.Knowledge,
		memory:      cfg.Memory,
		canned:      cfg.Canned,
		generators:  cfg.Generators,
		aiTimeout:   cfg.AITimeout,
		metrics:     cfg.Metrics,
	}
	if m.logs == nil {
		m.logs = slogSink{}
	}
	if m.kb == nil {
		m.kb = knowledge.Default()
	}
	if m.memory == nil {
		m.memory = NewShopifyMemory()
	}
	if m.canned == nil {
		m.canned = NewCannedTable()
	}
	if m.generators == nil {
		m.generators = NewGeneratorFactory(GeneratorOptions{})
	}
	if m.aiTimeout <= 0 {
		m.aiTimeout = DefaultAITimeout
	}
	return m
}

// Memory returns the inventory snapshot holder shared with the store sync
func (m *ResponseManager) Memory() *ShopifyMemory { return m.memory }

// Knowledge returns the knowledge base in use
func (m *ResponseManager) Knowledge() *knowledge.Base { return m.kb }

// Respond produces the reply for req. It always returns non-empty text.
//
// Precedence: stored post template, welcome message, generative backend grounded with the
// synthesized context, canned table.
func (m *ResponseManager) Respond(ctx context.Context, req Request) Reply {
	ctxType := req.Context
	if ctxType == "" {
		ctxType = models.ContextCustomer
	}

	if reply, ok := m.operatorTemplate(ctx, req); ok {
		m.metrics.ObserveReply(ctxType, reply.Source)
		return reply
	}

	intent := Classify(req.Message)
	synthesized := ""
	if needsContext(intent) {
		synthesized = m.BuildContext(intent, req.Message)
	}
	if req.ExtraContext != "" {
		synthesized = strings.TrimSpace(synthesized + "\n" + req.ExtraContext)
	}

	sel := ResolveBackend(ctx, m.credentials)
	text, err := m.generate(ctx, sel, Prompt{
		Persona:   PersonaFor(ctxType),
		Context:   synthesized,
		Message:   req.Message,
		Variables: req.Variables,
	})

	reply := Reply{Text: text, Source: models.SourceAI, Intent: intent, Backend: sel.Backend.String()}
	if err != nil {
		m.logs.Log(ctx, LevelError, errorSummary(err), "ai")
		slog.Warn("Falling back to canned reply",
			"backend", sel.Backend.String(),
			"intent", intent,
			"context", ctxType,
			"error", err,
		)
		reply.Text = m.canned.Lookup(ctxType, req.Message, req.Variables)
		reply.Source = models.SourceCanned
	}

	m.metrics.ObserveReply(ctxType, reply.Source)
	return reply
}

// operatorTemplate returns the stored post template or the page welcome message
func (m *ResponseManager) operatorTemplate(ctx context.Context, req Request) (Reply, bool) {
	if m.pages == nil {
		return Reply{}, false
	}

	if req.PostID != "" {
		tpl, ok, err := m.pages.AutoReplyTemplate(ctx, req.PostID)
		if err != nil {
			slog.Warn("Failed to load post auto-reply", "postID", req.PostID, "error", err)
		} else if ok && strings.TrimSpace(tpl) != "" {
			return Reply{Text: Substitute(tpl, req.Variables), Source: models.SourceTemplate}, true
		}
	}

	if req.CheckWelcome && req.PageID != "" && req.UserID != "" {
		first, err := m.pages.IsFirstMessage(ctx, req.UserID, req.PageID)
		if err != nil {
			slog.Warn("Failed to check first message", "pageID", req.PageID, "userID", req.UserID, "error", err)
			return Reply{}, false
		}
		if !first {
			return Reply{}, false
		}
		welcome, ok, err := m.pages.WelcomeMessage(ctx, req.PageID)
		if err != nil {
			slog.Warn("Failed to load welcome message", "pageID", req.PageID, "error", err)
		} else if ok && strings.TrimSpace(welcome) != "" {
			return Reply{Text: Substitute(welcome, req.Variables), Source: models.SourceWelcome}, true
		}
	}

	return Reply{}, false
}

// generate calls the resolved backend under the AI timeout. Empty text, panics and
// timeouts are reported as errors so the caller falls back.
func (m *ResponseManager) generate(ctx context.Context, sel BackendSelection, prompt Prompt) (string, error) {
	if sel.Backend == BackendNone {
		return "", ErrNoCredential
	}

	gen, err := m.generators(sel)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.aiTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s generator panicked: %v", sel.Backend, r)}
			}
		}()
		text, err := gen.Generate(ctx, prompt)
		done <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: fmt.Errorf("%w after %s", ErrAITimeout, m.aiTimeout)}
	}
	m.metrics.ObserveAI(sel.Backend, res.err, time.Since(start))

	if res.err != nil {
		return "", res.err
	}
	if strings.TrimSpace(res.text) == "" {
		return "", &DataError{Backend: sel.Backend, Reason: "empty content"}
	}
	return res.text, nil
}

// BuildContext synthesizes the grounding text for an intent from the knowledge base and
// the current inventory snapshot. General messages get no context.
func (m *ResponseManager) BuildContext(intent models.IntentCategory, message string) string {
	categories := strings.Join(m.memory.Snapshot().Categories, "، ")

	var b strings.Builder
	switch intent {
	case models.IntentPrice:
		fmt.Fprintf(&b, "العميل يسأل عن السعر. المنتجات المتاحة: %s. استخدم معلومات الأسعار المصرية.", categories)
	case models.IntentAvailability:
		fmt.Fprintf(&b, "العميل يسأل عن توافر منتج. المنتجات المتاحة: %s. تحقق من التوافر.", categories)
	case models.IntentShipping:
		b.WriteString("العميل يسأل عن التوصيل.")
		if city, ok := m.kb.MatchCity(message); ok {
			b.WriteString(" " + city.Summary() + ".")
		} else {
			b.WriteString(" معلومات التوصيل: متاح داخل القاهرة والجيزة خلال 1-2 يوم.")
		}
		return b.String()
	case models.IntentProduct:
		fmt.Fprintf(&b, "العميل يسأل عن منتج. المنتجات المتاحة: %s.", categories)
		if popular := m.popularTitles(); popular != "" {
			b.WriteString(" الأكثر طلباً: " + popular + ".")
		}
	default:
		return ""
	}

	if p, ok := m.kb.MatchProduct(message); ok {
		b.WriteString(" " + p.Summary() + ".")
	}
	return b.String()
}

func (m *ResponseManager) popularTitles() string {
	items := m.memory.Snapshot().PopularItems
	titles := make([]string, 0, len(items))
	for _, p := range items {
		if p.Title != "" {
			titles = append(titles, p.Title)
		}
	}
	return strings.Join(titles, "، ")
}

// ProcessComment answers a feed comment
func (m *ResponseManager) ProcessComment(ctx context.Context, ev CommentEvent) Reply {
	vars := models.VariableMap{
		"name":          ev.UserName,
		"page_name":     m.pageName(ctx, ev.PageID),
		"order_id":      ExtractOrderID(ev.Message),
		"product_info":  "",
		"shipping_info": "",
	}
	if p, ok := m.kb.MatchProduct(ev.Message); ok {
		vars["product_info"] = p.Summary()
	}
	if s, ok := m.kb.MatchCity(ev.Message); ok {
		vars["shipping_info"] = s.Summary()
	}

	return m.Respond(ctx, Request{
		Message:   ev.Message,
		Context:   models.ContextCustomer,
		Variables: vars,
		PostID:    ev.PostID,
		PageID:    ev.PageID,
		UserID:    ev.UserID,
	})
}

// ProcessMessage answers a direct message, greeting first-time users with the page's
// welcome message
func (m *ResponseManager) ProcessMessage(ctx context.Context, ev MessageEvent) Reply {
	vars := models.VariableMap{
		"name":      ev.UserName,
		"page_name": m.pageName(ctx, ev.PageID),
		"order_id":  ExtractOrderID(ev.Message),
	}

	return m.Respond(ctx, Request{
		Message:      ev.Message,
		Context:      models.ContextCustomer,
		Variables:    vars,
		PageID:       ev.PageID,
		UserID:       ev.UserID,
		CheckWelcome: true,
	})
}

// Ask answers an operator question from the admin surface
func (m *ResponseManager) Ask(ctx context.Context, question, pageContext string, ctxType models.InquiryContext) Reply {
	return m.Respond(ctx, Request{
		Message:      question,
		Context:      ctxType,
		Variables:    models.VariableMap{},
		ExtraContext: pageContext,
	})
}

func (m *ResponseManager) pageName(ctx context.Context, pageID string) string {
	if m.pages == nil || pageID == "" {
		return defaultPageName
	}
	if name := m.pages.PageName(ctx, pageID); name != "" {
		return name
	}
	return defaultPageName
}
