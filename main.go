package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"autoreply-bot/config"
	"autoreply-bot/handlers"
	"autoreply-bot/middleware"
	"autoreply-bot/models"
	"autoreply-bot/services"
	"autoreply-bot/webhooks"
)

const version = "1.0.0"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	app := &cli.App{
		Name:    "autoreply-bot",
		Usage:   "Arabic auto-reply bot for Facebook pages, Messenger and WhatsApp reports",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "autoreply.toml",
				EnvVars: []string{"AUTOREPLY_CONFIG"},
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the webhook and admin HTTP server",
				Action: runServe,
			},
			{
				Name:  "report",
				Usage: "Print the daily report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Report day as YYYY-MM-DD, today when empty",
					},
				},
				Action: runReport,
			},
			{
				Name:  "test-connection",
				Usage: "Check a third-party service with its stored token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "service",
						Usage: "facebook, whatsapp or googlesheet; every service when empty",
					},
				},
				Action: runTestConnection,
			},
			{
				Name:  "ask",
				Usage: "Run one message through the reply pipeline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "context",
						Usage: "customer, assistant or admin",
						Value: string(models.ContextCustomer),
					},
					&cli.StringFlag{
						Name:     "message",
						Aliases:  []string{"m"},
						Usage:    "Message to answer",
						Required: true,
					},
				},
				Action: runAsk,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when present and validates the result
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); err != nil {
		if c.IsSet("config") {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		path = ""
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and connects the shared components
func setup(c *cli.Context) (*components, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	return newComponents(ctx, cfg)
}

func runServe(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer comp.close()
	cfg := comp.cfg

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := comp.ensureAdmin(ctx); err != nil {
		return err
	}

	dispatcher := services.NewDispatcher(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, comp.metrics)
	dispatcher.Start(ctx)

	feed := services.NewWebSocketManager()
	defer feed.Close()

	if cfg.Reports.AdminPhone != "" {
		if err := services.StartDailyReportScheduler(ctx, comp.reporter, cfg.Reports.AdminPhone, cfg.Reports.DailyAt); err != nil {
			return fmt.Errorf("failed to start report scheduler: %w", err)
		}
	}

	app := newServer(comp, dispatcher, feed)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Server.Port)
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		dispatcher.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	dispatcher.Stop()
	return nil
}

// newServer builds the fiber app with every route
func newServer(comp *components, dispatcher *services.Dispatcher, feed *services.WebSocketManager) *fiber.App {
	cfg := comp.cfg

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	webhooks.RegisterRoutes(app, cfg.Webhook.VerifyToken, dispatcher, comp.eventHandler(feed))

	authService := services.NewAuthService(comp.store, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	authHandler := handlers.NewAuthHandler(authService)
	requireAuth := middleware.RequireAuth(cfg.Admin.JWTSecret)

	auth := app.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.CurrentUser)

	adminHandler := handlers.NewAdminHandler(comp.manager, comp.store, comp.tester, comp.shopify, comp.reporter)
	wsHandler := handlers.NewWebSocketHandler(feed)

	admin := app.Group("/admin", requireAuth)
	admin.Get("/services", adminHandler.GetServices)
	admin.Post("/services/:service/token", middleware.RequireRole(models.RoleAdmin), adminHandler.SaveServiceToken)
	admin.Put("/services/:service/status", middleware.RequireRole(models.RoleAdmin), adminHandler.SetServiceStatus)
	admin.Post("/test-connection", adminHandler.TestConnection)
	admin.Get("/test-connection", adminHandler.TestAllConnections)
	admin.Post("/ai/update", middleware.RequireRole(models.RoleAdmin), adminHandler.UpdateAI)
	admin.Post("/whatsapp/connect", middleware.RequireRole(models.RoleAdmin), adminHandler.ConnectWhatsApp)
	admin.Put("/pages/:pageID", adminHandler.UpdatePage)
	admin.Put("/posts/:postID/auto-reply", adminHandler.SetPostAutoReply)
	admin.Post("/orders", adminHandler.CreateOrder)
	admin.Post("/orders/assign", adminHandler.AssignOrder)
	admin.Post("/agents/add", middleware.RequireRole(models.RoleAdmin), adminHandler.AddAgent)
	admin.Get("/logs", adminHandler.GetLogs)
	admin.Get("/responses", adminHandler.GetResponses)
	admin.Get("/inventory", adminHandler.GetInventory)
	admin.Get("/ws", handlers.WebSocketUpgrade, websocket.New(wsHandler.Handle))

	api := app.Group("/api", requireAuth)
	api.Post("/ask", adminHandler.Ask)
	api.Post("/reports/daily", adminHandler.DailyReport)
	api.Post("/whatsapp/send-report", adminHandler.SendWhatsAppReport)
	api.Post("/shopify/connect", middleware.RequireRole(models.RoleAdmin), adminHandler.ConnectShopify)

	app.Get("/metrics", adaptor.HTTPHandler(comp.metrics.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     "autoreply-bot",
			"connections": feed.ConnectionCount(),
		})
	})

	return app
}

func runReport(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer comp.close()

	day := time.Now()
	if d := c.String("date"); d != "" {
		day, err = time.ParseInLocation("2006-01-02", d, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", d, err)
		}
	}

	report, err := comp.manager.GenerateDailyReport(c.Context, day)
	if err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}

func runTestConnection(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer comp.close()

	var out interface{}
	if service := c.String("service"); service != "" {
		out = comp.tester.Test(c.Context, service)
	} else {
		out = comp.tester.TestAll(c.Context)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runAsk(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer comp.close()

	ctxType := models.ParseInquiryContext(c.String("context"))
	reply := comp.manager.Respond(c.Context, services.Request{
		Message: c.String("message"),
		Context: ctxType,
	})

	fmt.Println(reply.Text)
	slog.Info("Reply generated", "source", reply.Source, "intent", reply.Intent, "backend", reply.Backend)
	return nil
}
