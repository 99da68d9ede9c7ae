package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"autoreply-bot/models"
	"autoreply-bot/services"
)

// AdminStore is the persistence behind the admin API
type AdminStore interface {
	SaveToken(ctx context.Context, service, accessToken, refreshToken string) error
	SetStatus(ctx context.Context, service string, enabled bool) error
	Services(ctx context.Context) ([]models.ServiceCredential, error)
	SavePage(ctx context.Context, page *models.Page) error
	SetAutoReply(ctx context.Context, postID, pageID, text string) error
	SaveProducts(ctx context.Context, products []models.Product) error
	SaveOrder(ctx context.Context, order *models.Order) error
	InsertOrder(ctx context.Context, order *models.Order) error
	AssignOrder(ctx context.Context, orderID, agentID string) error
	SaveAgent(ctx context.Context, agent *models.Agent) error
	AgentPerformance(ctx context.Context, agentID string, day time.Time) (models.AgentPerformance, error)
	RecentLogs(ctx context.Context, limit int64) ([]models.LogEntry, error)
	RecentResponses(ctx context.Context, limit int64) ([]models.Response, error)
	Log(ctx context.Context, level, message, service string)
}

// ConnectionTesting checks third-party services
type ConnectionTesting interface {
	Test(ctx context.Context, service string) models.ConnectionResult
	TestAll(ctx context.Context) map[string]models.ConnectionResult
}

// ProductFetcher reads a store catalogue
type ProductFetcher interface {
	FetchProducts(ctx context.Context, storeURL, accessToken string) ([]models.Product, error)
}

// Reporter sends reports over WhatsApp
type Reporter interface {
	SendDailyReport(ctx context.Context, adminPhone string) error
	SendAgentPerformanceReport(ctx context.Context, agentPhone string, perf models.AgentPerformance) error
}

// AdminHandler serves the operator API
type AdminHandler struct {
	manager  *services.ResponseManager
	store    AdminStore
	tester   ConnectionTesting
	shopify  ProductFetcher
	reporter Reporter
	now      func() time.Time
}

func NewAdminHandler(manager *services.ResponseManager, store AdminStore, tester ConnectionTesting, shopify ProductFetcher, reporter Reporter) *AdminHandler {
	return &AdminHandler{
		manager:  manager,
		store:    store,
		tester:   tester,
		shopify:  shopify,
		reporter: reporter,
		now:      time.Now,
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

func ok(c *fiber.Ctx, extra fiber.Map) error {
	body := fiber.Map{"status": "success"}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(body)
}

func knownService(service string) bool {
	for _, s := range models.AllServices {
		if s == service {
			return true
		}
	}
	return false
}

// GetServices lists every service with its status
func (h *AdminHandler) GetServices(c *fiber.Ctx) error {
	creds, err := h.store.Services(c.UserContext())
	if err != nil {
		slog.Error("Failed to list services", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to list services")
	}
	return ok(c, fiber.Map{"services": creds})
}

// SaveServiceToken stores a token obtained outside the bot, e.g. a page token
func (h *AdminHandler) SaveServiceToken(c *fiber.Ctx) error {
	service := c.Params("service")
	if !knownService(service) {
		return fail(c, fiber.StatusBadRequest, "Service not supported")
	}

	var req struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.AccessToken == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	if err := h.store.SaveToken(c.UserContext(), service, req.AccessToken, req.RefreshToken); err != nil {
		slog.Error("Failed to save token", "error", err, "service", service)
		return fail(c, fiber.StatusInternalServerError, "Failed to save token")
	}
	h.store.Log(c.UserContext(), services.LevelInfo, fmt.Sprintf("%s token updated", service), service)
	return ok(c, nil)
}

// SetServiceStatus enables or disables a service
func (h *AdminHandler) SetServiceStatus(c *fiber.Ctx) error {
	service := c.Params("service")
	if !knownService(service) {
		return fail(c, fiber.StatusBadRequest, "Service not supported")
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	if err := h.store.SetStatus(c.UserContext(), service, *req.Enabled); err != nil {
		slog.Error("Failed to update status", "error", err, "service", service)
		return fail(c, fiber.StatusInternalServerError, "Failed to update status")
	}
	return ok(c, fiber.Map{"service": service, "enabled": *req.Enabled})
}

// TestConnection checks one service with its stored token
func (h *AdminHandler) TestConnection(c *fiber.Ctx) error {
	var req struct {
		Service string `json:"service"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	return c.JSON(h.tester.Test(c.UserContext(), req.Service))
}

// TestAllConnections checks every testable service
func (h *AdminHandler) TestAllConnections(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"results": h.tester.TestAll(c.UserContext())})
}

// UpdateAI stores the API key of a generative model and enables it
func (h *AdminHandler) UpdateAI(c *fiber.Ctx) error {
	var req struct {
		Model  string `json:"model"`
		APIKey string `json:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil || req.Model == "" || req.APIKey == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}
	if req.Model != models.ServiceOpenAI && req.Model != models.ServiceDeepSeek {
		return fail(c, fiber.StatusBadRequest, "Model not supported")
	}

	ctx := c.UserContext()
	if err := h.store.SaveToken(ctx, req.Model, req.APIKey, ""); err != nil {
		slog.Error("Failed to save AI key", "error", err, "model", req.Model)
		return fail(c, fiber.StatusInternalServerError, "Failed to save API key")
	}
	h.store.Log(ctx, services.LevelInfo, fmt.Sprintf("%s AI model updated", strings.ToUpper(req.Model)), "ai")
	return ok(c, nil)
}

// ConnectWhatsApp stores the WhatsApp Business token
func (h *AdminHandler) ConnectWhatsApp(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		AccessToken string `json:"access_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.AccessToken == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	ctx := c.UserContext()
	if err := h.store.SaveToken(ctx, models.ServiceWhatsApp, req.AccessToken, ""); err != nil {
		slog.Error("Failed to save WhatsApp token", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to save token")
	}
	h.store.Log(ctx, services.LevelInfo, "WhatsApp Business connected", models.ServiceWhatsApp)
	return ok(c, nil)
}

// UpdatePage saves a page's name, welcome message and optional token
func (h *AdminHandler) UpdatePage(c *fiber.Ctx) error {
	var req struct {
		PageName       string `json:"page_name"`
		WelcomeMessage string `json:"welcome_message"`
		AccessToken    string `json:"access_token"`
		Status         *bool  `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	page := &models.Page{
		PageID:         c.Params("pageID"),
		PageName:       req.PageName,
		WelcomeMessage: req.WelcomeMessage,
		AccessToken:    req.AccessToken,
		Status:         req.Status == nil || *req.Status,
	}
	if err := h.store.SavePage(c.UserContext(), page); err != nil {
		slog.Error("Failed to save page", "error", err, "pageID", page.PageID)
		return fail(c, fiber.StatusInternalServerError, "Failed to save page")
	}
	return ok(c, fiber.Map{"page": page})
}

// SetPostAutoReply stores the custom reply of a post
func (h *AdminHandler) SetPostAutoReply(c *fiber.Ctx) error {
	var req struct {
		PageID    string `json:"page_id"`
		AutoReply string `json:"auto_reply"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	postID := c.Params("postID")
	if err := h.store.SetAutoReply(c.UserContext(), postID, req.PageID, req.AutoReply); err != nil {
		slog.Error("Failed to save auto-reply", "error", err, "postID", postID)
		return fail(c, fiber.StatusInternalServerError, "Failed to save auto-reply")
	}
	return ok(c, fiber.Map{"post_id": postID})
}

// ConnectShopify syncs the store catalogue and swaps the inventory snapshot
func (h *AdminHandler) ConnectShopify(c *fiber.Ctx) error {
	var req struct {
		StoreURL string `json:"store_url"`
		APIKey   string `json:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil || req.StoreURL == "" || req.APIKey == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	ctx := c.UserContext()
	products, err := h.shopify.FetchProducts(ctx, req.StoreURL, req.APIKey)
	if err != nil {
		h.store.Log(ctx, services.LevelError, fmt.Sprintf("Shopify sync failed: %v", err), "shopify")
		return fail(c, fiber.StatusBadGateway, "فشل جلب المنتجات من Shopify")
	}
	if len(products) == 0 {
		return fail(c, fiber.StatusBadGateway, "فشل جلب المنتجات من Shopify")
	}

	if err := h.store.SaveProducts(ctx, products); err != nil {
		slog.Error("Failed to persist products", "error", err)
	}
	snap := h.manager.Memory().Replace(products)

	return ok(c, fiber.Map{
		"message":        fmt.Sprintf("تم ربط %d منتج من Shopify", len(products)),
		"products_count": len(products),
		"categories":     snap.Categories,
	})
}

// CreateOrder records an order
func (h *AdminHandler) CreateOrder(c *fiber.Ctx) error {
	var order models.Order
	if err := c.BodyParser(&order); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if order.Status == "" {
		order.Status = models.OrderNew
	}

	var err error
	if order.OrderID != "" {
		err = h.store.SaveOrder(c.UserContext(), &order)
	} else {
		err = h.insertNumberedOrder(c.UserContext(), &order)
	}
	if err != nil {
		slog.Error("Failed to save order", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to save order")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "order": order})
}

const orderNumberAttempts = 5

// insertNumberedOrder gives the order a #NNNNNN id, moving to the next number when
// one is taken
func (h *AdminHandler) insertNumberedOrder(ctx context.Context, order *models.Order) error {
	base := h.now().UnixNano()
	var err error
	for attempt := int64(0); attempt < orderNumberAttempts; attempt++ {
		order.OrderID = orderNumber(base + attempt)
		err = h.store.InsertOrder(ctx, order)
		if !errors.Is(err, services.ErrDuplicateOrder) {
			return err
		}
		slog.Warn("Order number taken, trying the next one", "orderID", order.OrderID)
	}
	return err
}

func orderNumber(n int64) string {
	return fmt.Sprintf("#%06d", n%1000000)
}

// AssignOrder hands an order to an agent
func (h *AdminHandler) AssignOrder(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"order_id"`
		AgentID string `json:"agent_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" || req.AgentID == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	ctx := c.UserContext()
	err := h.store.AssignOrder(ctx, req.OrderID, req.AgentID)
	if errors.Is(err, services.ErrOrderNotFound) {
		return fail(c, fiber.StatusNotFound, "Order not found")
	}
	if err != nil {
		slog.Error("Failed to assign order", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to assign order")
	}
	h.store.Log(ctx, services.LevelInfo, fmt.Sprintf("Order %s assigned to agent %s", req.OrderID, req.AgentID), "orders")
	return ok(c, nil)
}

// AddAgent registers a delivery agent
func (h *AdminHandler) AddAgent(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	agent := &models.Agent{
		AgentID:  "agent_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:     req.Name,
		Phone:    req.Phone,
		IsActive: true,
	}
	ctx := c.UserContext()
	if err := h.store.SaveAgent(ctx, agent); err != nil {
		slog.Error("Failed to save agent", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to save agent")
	}
	h.store.Log(ctx, services.LevelInfo, fmt.Sprintf("New agent added: %s", agent.Name), "agents")
	return ok(c, fiber.Map{"agent_id": agent.AgentID})
}

// Ask runs an operator question through the reply pipeline
func (h *AdminHandler) Ask(c *fiber.Ctx) error {
	var req struct {
		Question    string `json:"question"`
		PageContext string `json:"page_context"`
		ContextType string `json:"context_type"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return fail(c, fiber.StatusBadRequest, "Missing question")
	}
	if req.ContextType == "" {
		req.ContextType = string(models.ContextAssistant)
	}

	reply := h.manager.Ask(c.UserContext(), req.Question, req.PageContext, models.ParseInquiryContext(req.ContextType))
	return c.JSON(reply)
}

// DailyReport renders the daily report for ?date=YYYY-MM-DD, today by default
func (h *AdminHandler) DailyReport(c *fiber.Ctx) error {
	day := h.now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, time.Local)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid date")
		}
		day = parsed
	}

	report, err := h.manager.GenerateDailyReport(c.UserContext(), day)
	if err != nil {
		slog.Error("Failed to generate daily report", "error", err)
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return ok(c, fiber.Map{"report": report})
}

// SendWhatsAppReport sends the daily or an agent report to a phone
func (h *AdminHandler) SendWhatsAppReport(c *fiber.Ctx) error {
	var req struct {
		Phone     string                   `json:"phone"`
		Type      string                   `json:"type"`
		AgentID   string                   `json:"agent_id"`
		AgentData *models.AgentPerformance `json:"agent_data"`
	}
	if err := c.BodyParser(&req); err != nil || req.Phone == "" {
		return fail(c, fiber.StatusBadRequest, "Missing data")
	}

	ctx := c.UserContext()
	var err error
	switch req.Type {
	case "", "daily":
		err = h.reporter.SendDailyReport(ctx, req.Phone)
	case "agent":
		perf := models.AgentPerformance{}
		if req.AgentData != nil {
			perf = *req.AgentData
		} else if req.AgentID != "" {
			perf, err = h.store.AgentPerformance(ctx, req.AgentID, h.now())
			if err != nil {
				slog.Error("Failed to load agent performance", "error", err, "agentID", req.AgentID)
				return fail(c, fiber.StatusInternalServerError, "فشل إرسال التقرير")
			}
		}
		err = h.reporter.SendAgentPerformanceReport(ctx, req.Phone, perf)
	default:
		return fail(c, fiber.StatusBadRequest, "Report type not supported")
	}

	if err != nil {
		return fail(c, fiber.StatusBadGateway, "فشل إرسال التقرير")
	}
	return ok(c, fiber.Map{"message": "تم إرسال التقرير بنجاح"})
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// listLimit reads ?limit= bounded to 1..500. A zero limit would mean no limit to MongoDB.
func listLimit(c *fiber.Ctx) int64 {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return int64(limit)
}

// GetLogs returns the newest operational log entries
func (h *AdminHandler) GetLogs(c *fiber.Ctx) error {
	limit := listLimit(c)
	logs, err := h.store.RecentLogs(c.UserContext(), limit)
	if err != nil {
		slog.Error("Failed to list logs", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to list logs")
	}
	return ok(c, fiber.Map{"logs": logs})
}

// GetResponses returns the newest pipeline replies
func (h *AdminHandler) GetResponses(c *fiber.Ctx) error {
	limit := listLimit(c)
	responses, err := h.store.RecentResponses(c.UserContext(), limit)
	if err != nil {
		slog.Error("Failed to list responses", "error", err)
		return fail(c, fiber.StatusInternalServerError, "Failed to list responses")
	}
	return ok(c, fiber.Map{"responses": responses})
}

// GetInventory returns the current inventory snapshot
func (h *AdminHandler) GetInventory(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"snapshot": h.manager.Memory().Snapshot()})
}
