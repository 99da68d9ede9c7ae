package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"autoreply-bot/config"
	"autoreply-bot/handlers"
	"autoreply-bot/knowledge"
	"autoreply-bot/services"
)

// components holds the long-lived services shared by every command
type components struct {
	cfg       *config.Config
	client    *mongo.Client
	store     *services.Store
	metrics   *services.Metrics
	manager   *services.ResponseManager
	tester    *services.ConnectionTester
	reporter  *services.WhatsAppReporter
	facebook  *services.FacebookClient
	shopify   *services.ShopifyClient
	whatsapp  *services.WhatsAppClient
	knowledge *knowledge.Base
}

// newComponents connects to MongoDB and builds the reply pipeline around it
func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	client, err := services.InitMongoDB(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}

	store, err := services.NewStore(ctx, client, cfg.Mongo.Database)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	kb := knowledge.Default()
	if cfg.Knowledge.File != "" {
		kb, err = knowledge.Load(cfg.Knowledge.File)
		if err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		slog.Info("Loaded knowledge base", "file", cfg.Knowledge.File)
	}

	memory := services.NewShopifyMemory()
	if products, err := store.Products(ctx); err != nil {
		slog.Error("Failed to load stored products", "error", err)
	} else if len(products) > 0 {
		memory.Replace(products)
		slog.Info("Restored inventory snapshot", "products", len(products))
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	metrics := services.NewMetrics()

	manager := services.NewResponseManager(services.ResponseManagerConfig{
		Credentials: store,
		Pages:       store,
		Logs:        store,
		Counters:    store,
		Knowledge:   kb,
		Memory:      memory,
		Generators: services.NewGeneratorFactory(services.GeneratorOptions{
			OpenAIBaseURL:   cfg.AI.OpenAIBaseURL,
			DeepSeekBaseURL: cfg.AI.DeepSeekBaseURL,
			HTTPClient:      httpClient,
		}),
		AITimeout: cfg.AI.Timeout,
		Metrics:   metrics,
	})

	whatsapp := services.NewWhatsAppClient(cfg.Graph.BaseURL, httpClient)

	return &components{
		cfg:     cfg,
		client:  client,
		store:   store,
		metrics: metrics,
		manager: manager,
		tester: services.NewConnectionTester(store, services.ConnectionTesterOptions{
			GraphBaseURL: cfg.Graph.BaseURL,
			Metrics:      metrics,
		}),
		reporter:  services.NewWhatsAppReporter(manager, whatsapp, store, cfg.WhatsApp.PhoneNumberID, store, store, metrics),
		facebook:  services.NewFacebookClient(cfg.Graph.BaseURL, httpClient),
		shopify:   services.NewShopifyClient(httpClient),
		whatsapp:  whatsapp,
		knowledge: kb,
	}, nil
}

// close waits for pending log writes and disconnects from MongoDB
func (c *components) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Flush(ctx); err != nil {
		slog.Warn("Log entries still pending at shutdown", "error", err)
	}
	if err := c.client.Disconnect(ctx); err != nil {
		slog.Error("Failed to disconnect from MongoDB", "error", err)
	}
}

// ensureAdmin creates the configured dashboard user on first start
func (c *components) ensureAdmin(ctx context.Context) error {
	if c.cfg.Admin.Password == "" {
		slog.Warn("admin.password not set, skipping admin bootstrap")
		return nil
	}
	if err := c.store.EnsureAdmin(ctx, c.cfg.Admin.Username, c.cfg.Admin.Password); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// eventHandler builds the webhook event handler with its own limiter and feed
func (c *components) eventHandler(feed *services.WebSocketManager) *handlers.EventHandler {
	limiter := services.NewPageRateLimiter(c.cfg.Dispatch.RepliesPerMinute)
	return handlers.NewEventHandler(c.manager, c.store, c.facebook, limiter, feed, c.metrics)
}
