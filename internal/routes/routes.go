// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/handler"
	"tempctl-service/internal/middleware"
	"tempctl-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config            *config.Config
	logger            *zap.Logger
	healthHandler     *handler.HealthHandler
	controllerHandler *handler.ControllerHandler
	operationHandler  *handler.OperationHandler
	discoveryHandler  *handler.DiscoveryHandler
	websocketHandler  *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	healthHandler *handler.HealthHandler,
	controllerHandler *handler.ControllerHandler,
	operationHandler *handler.OperationHandler,
	discoveryHandler *handler.DiscoveryHandler,
	websocketHandler *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:            config,
		logger:            logger,
		healthHandler:     healthHandler,
		controllerHandler: controllerHandler,
		operationHandler:  operationHandler,
		discoveryHandler:  discoveryHandler,
		websocketHandler:  websocketHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	// Set Gin mode
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Create Gin engine
	router := gin.New()

	// Add middleware
	r.addMiddleware(router)

	// Add routes
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	// Recovery middleware
	router.Use(middleware.RecoveryMiddleware(r.logger))

	// Request ID middleware
	router.Use(middleware.RequestIDMiddleware())

	// Logging middleware
	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	// CORS middleware
	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	// Health check routes (no auth required)
	r.healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	r.controllerHandler.RegisterRoutes(apiV1)
	r.operationHandler.RegisterRoutes(apiV1)
	r.operationHandler.RegisterControllerRoutes(apiV1)
	r.discoveryHandler.RegisterRoutes(apiV1)

	// WebSocket routes
	r.websocketHandler.RegisterRoutes(router.Group("/ws"))

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	// Swagger redirect for convenience
	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
