package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gormlogger "gorm.io/gorm/logger"

	"github.com/socialora/outreach/config"
	"github.com/socialora/outreach/internal/api/v1/middleware"
	"github.com/socialora/outreach/internal/control"
	"github.com/socialora/outreach/internal/db"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/geo"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/intent"
	"github.com/socialora/outreach/internal/logger"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
	"github.com/socialora/outreach/pkg/api/v1/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.InitializeAndConfigure(cfg.LogLevel)

	sslEnabled := cfg.DBSSLEnabled
	database, err := db.New(db.Options{
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		DBName:     cfg.DBName,
		Port:       cfg.DBPort,
		SSLEnabled: &sslEnabled,
		LogLevel:   gormlogger.Warn,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ig, err := instagram.NewGatewayClient(instagram.GatewayOptions{
		BaseURL: cfg.InstagramGatewayURL,
		Timeout: cfg.InstagramGatewayTimeout,
	})
	if err != nil {
		logger.Fatalf("Failed to create instagram gateway client: %v", err)
	}

	// Initialize repositories
	jobRepo := repos.NewJobRepository(database)
	campaignRepo := repos.NewCampaignRepository(database)
	accountRepo := repos.NewAccountRepository(database)
	leadRepo := repos.NewLeadRepository(database)

	// Initialize services
	classifier := intent.New(intent.AIConfig{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
	})
	detector := geo.NewDetector(geo.MustLexicon())
	mining := services.NewMiningService(ig, leadRepo, detector, classifier).
		WithAccounts(accountRepo)
	campaignService := services.NewCampaignService(campaignRepo, jobRepo, accountRepo, leadRepo, ig)
	jobService := services.NewJobService(jobRepo, accountRepo, leadRepo, ig, mining, campaignService, services.JobOptions{
		DiscoveryFrequency: cfg.DefaultDiscoveryFrequency,
	})
	autonomous := services.NewAutonomousService(mining, ig, accountRepo,
		control.New(cfg.RedisAddr, cfg.RedisPassword), cfg.MiningStateDir)
	leadService := services.NewLeadService(leadRepo, accountRepo, ig).WithDetector(detector)

	logger.InfoWithFields("Services initialized", logger.Fields{
		"ai_intent":  cfg.AIEnabled(),
		"redis_stop": cfg.RedisAddr != "",
		"state_dir":  cfg.MiningStateDir,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(middleware.Logger())

	api := handlers.NewAPIHandler(jobService, campaignService, mining, autonomous, leadService)
	routes.RegisterRoutes(app, api)

	// Start the worker
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go services.LaunchWorker(ctx, wg, jobService, campaignService, services.WorkerOptions{
		PollInterval:     cfg.WorkerPollInterval,
		CampaignInterval: cfg.CampaignInterval,
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.APIPort)
		logger.Infof("API server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Errorf("API server stopped: %v", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	cancel()
	autonomous.Shutdown()
	if err := app.Shutdown(); err != nil {
		logger.Errorf("Failed to shut down API server: %v", err)
	}
	wg.Wait()
	logger.Info("Shutdown complete")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(handlers.RPCResponse{
		Error: &handlers.RPCError{Code: code, Message: err.Error()},
	})
}
