// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/database"
	internalDriver "tempctl-service/internal/driver"
	"tempctl-service/internal/handler"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/routes"
	"tempctl-service/internal/service"
	"tempctl-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Services
	controllerService *service.ControllerService
	operationService  *service.OperationService
	discoveryService  *service.DiscoveryService
	pollingService    *service.PollingService

	// Repositories
	controllerRepo repository.ControllerRepository
	operationRepo  repository.OperationRepository
	readingRepo    repository.ReadingRepository

	// Driver infrastructure
	driverRegistry *internalDriver.Registry
	driverPool     *service.DriverPool

	// Handlers
	websocketHandler *handler.WebSocketHandler
}

// @title Temperature Controller Service API
// @version 1.0.0
// @description Management service for laboratory temperature controllers (SRS CTC100, Lake Shore 331/332)
// @termsOfService http://swagger.io/terms/

// @contact.name Temperature Controller Service Support
// @contact.email support@tempctl.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	// Initialize application
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Start the application
	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create service logger
	serviceLogger := utils.NewServiceLogger(logger, "tempctl-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	// Initialize components
	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := app.initializeDriverRegistry(); err != nil {
		return nil, fmt.Errorf("failed to initialize driver registry: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	db, err := database.Connect(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() error {
	app.controllerRepo = repository.NewControllerRepository(app.database, app.logger)
	app.operationRepo = repository.NewOperationRepository(app.database, app.logger)
	app.readingRepo = repository.NewReadingRepository(app.database, app.logger)

	app.logger.Info("Repositories initialized successfully")
	return nil
}

// initializeDriverRegistry sets up controller driver registry
func (app *Application) initializeDriverRegistry() error {
	app.driverRegistry = internalDriver.NewRegistry(app.logger)

	// Register all supported drivers
	internalDriver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Int("registered_drivers", len(app.driverRegistry.ListDrivers())),
	)
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	app.driverPool = service.NewDriverPool(app.logger)

	// Create controller service
	app.controllerService = service.NewControllerService(
		app.controllerRepo,
		app.operationRepo,
		app.driverRegistry,
		app.driverPool,
		app.config,
		app.logger,
	)

	// Create operation service
	app.operationService = service.NewOperationService(
		app.operationRepo,
		app.controllerRepo,
		app.readingRepo,
		app.driverPool,
		app.config,
		app.logger,
	)

	// Create discovery service
	app.discoveryService = service.NewDiscoveryService(
		app.controllerRepo,
		app.controllerService,
		app.driverRegistry,
		app.config,
		app.logger,
	)

	// Create polling service
	app.pollingService = service.NewPollingService(
		app.controllerRepo,
		app.readingRepo,
		app.driverPool,
		app.config,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	// Create handlers
	healthHandler := handler.NewHealthHandler(app.database, app.driverPool, app.config, app.logger)
	controllerHandler := handler.NewControllerHandler(app.controllerService, app.logger)
	operationHandler := handler.NewOperationHandler(app.operationService, app.controllerService, app.logger)
	discoveryHandler := handler.NewDiscoveryHandler(app.discoveryService, app.driverRegistry, app.logger)
	app.websocketHandler = handler.NewWebSocketHandler(app.controllerService, app.operationService, app.logger)

	// Route driver events to WebSocket clients
	eventHandler := handler.NewControllerEventHandler(app.websocketHandler, app.logger)
	app.controllerService.SetEventHandler(eventHandler)

	// Create router
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		healthHandler,
		controllerHandler,
		operationHandler,
		discoveryHandler,
		app.websocketHandler,
	)

	// Setup router with all routes
	router := routerManager.SetupRouter()

	// Create HTTP server
	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	// Start temperature polling
	go app.pollingService.Start()

	// Start cleanup service
	go app.startCleanupService()

	app.logger.Info("Background services started")
}

// startCleanupService starts cleanup service for old records
func (app *Application) startCleanupService() {
	// Run cleanup every hour
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started")

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)

		// Cleanup old operations (30 days)
		oldDate := time.Now().AddDate(0, 0, -30)
		deletedOps, err := app.operationRepo.DeleteOldOperations(ctx, oldDate)
		if err != nil {
			app.logger.Error("Failed to cleanup old operations", zap.Error(err))
		} else if deletedOps > 0 {
			app.logger.Info("Cleaned up old operations", zap.Int64("deleted", deletedOps))
		}

		// Cleanup readings past the retention window
		if err := app.pollingService.RunRetentionCleanup(ctx); err != nil {
			app.logger.Error("Failed to cleanup old readings", zap.Error(err))
		}

		cancel()
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	// Create channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Perform graceful shutdown
	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "tempctl-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	// Stop polling before tearing down drivers
	app.pollingService.Stop()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Disconnect all controllers
	app.driverPool.CloseAll(ctx)

	// Close database connection
	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	// Flush logger
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	// Start server in goroutine
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Start background services
	app.startBackgroundServices()

	// Wait for interrupt signal
	app.waitForShutdown()

	return nil
}
