// internal/handler/controller_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/internal/service"
	"tempctl-service/internal/utils"
)

// ControllerHandler handles controller-related HTTP requests
type ControllerHandler struct {
	controllerService *service.ControllerService
	logger            *utils.ServiceLogger
}

// NewControllerHandler creates a new controller handler
func NewControllerHandler(controllerService *service.ControllerService, logger *zap.Logger) *ControllerHandler {
	return &ControllerHandler{
		controllerService: controllerService,
		logger:            utils.NewServiceLogger(logger, "controller-handler"),
	}
}

// RegisterRoutes registers controller-related routes
func (h *ControllerHandler) RegisterRoutes(router *gin.RouterGroup) {
	controllers := router.Group("/controllers")
	{
		controllers.POST("", h.RegisterController)
		controllers.GET("", h.ListControllers)
		controllers.GET("/stats", h.GetControllerStats)

		controllerRoutes := controllers.Group("/:id")
		{
			controllerRoutes.GET("", h.GetController)
			controllerRoutes.DELETE("", h.DeleteController)
			controllerRoutes.POST("/connect", h.ConnectController)
			controllerRoutes.POST("/disconnect", h.DisconnectController)
			controllerRoutes.POST("/test", h.TestController)
			controllerRoutes.GET("/health", h.GetControllerHealth)
			controllerRoutes.PUT("/config", h.UpdateControllerConfig)
		}
	}
}

// RegisterController registers a new controller
// @Summary Register a new controller
// @Description Register a new temperature controller in the system with connection configuration
// @Tags Controllers
// @Accept json
// @Produce json
// @Param request body service.RegisterControllerRequest true "Controller registration request"
// @Success 201 {object} utils.APIResponse{data=model.Controller} "Controller registered successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /controllers [post]
func (h *ControllerHandler) RegisterController(c *gin.Context) {
	var req service.RegisterControllerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Add user ID from context (would come from auth middleware)
	if userID, exists := c.Get("user_id"); exists {
		req.UserID = userID.(string)
	}

	controller, err := h.controllerService.RegisterController(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to register controller", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to register controller", err)
		return
	}

	h.logger.Info("Controller registered successfully", zap.String("controller_id", controller.ControllerID))
	utils.SuccessResponse(c, http.StatusCreated, "Controller registered successfully", controller)
}

// ListControllers lists controllers with filtering and pagination
// @Summary List controllers
// @Description Get list of controllers with filtering and pagination support
// @Tags Controllers
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param brand query string false "Filter by brand" Enums(SRS, LAKESHORE, GENERIC)
// @Param status query string false "Filter by status" Enums(ONLINE, OFFLINE, ERROR, MAINTENANCE, CONNECTING)
// @Param location query string false "Filter by location"
// @Param search query string false "Search in controller ID and model"
// @Param sort_by query string false "Sort by field" default(created_at)
// @Param sort_order query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} utils.APIResponse{data=object{controllers=[]model.Controller,pagination=service.PaginationResult}} "Controllers retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /controllers [get]
func (h *ControllerHandler) ListControllers(c *gin.Context) {
	filter := &service.ControllerFilter{
		Page:      1,
		PerPage:   20,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp, err := strconv.Atoi(perPage); err == nil && pp > 0 && pp <= 100 {
			filter.PerPage = pp
		}
	}

	if brand := c.Query("brand"); brand != "" {
		b := model.ControllerBrand(brand)
		filter.Brand = &b
	}
	if status := c.Query("status"); status != "" {
		s := model.ControllerStatus(status)
		filter.Status = &s
	}
	if location := c.Query("location"); location != "" {
		filter.Location = &location
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}

	if sortBy := c.Query("sort_by"); sortBy != "" {
		filter.SortBy = sortBy
	}
	if sortOrder := c.Query("sort_order"); sortOrder != "" {
		filter.SortOrder = sortOrder
	}

	controllers, pagination, err := h.controllerService.ListControllers(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list controllers", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list controllers", err)
		return
	}

	response := gin.H{
		"controllers": controllers,
		"pagination":  pagination,
	}

	utils.SuccessResponse(c, http.StatusOK, "Controllers retrieved successfully", response)
}

// GetController retrieves controller by ID
// @Summary Get controller details
// @Description Get controller details and current status by controller ID
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=model.Controller} "Controller retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id} [get]
func (h *ControllerHandler) GetController(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	controller, err := h.controllerService.GetController(c.Request.Context(), controllerID)
	if err != nil {
		h.logger.Error("Failed to get controller", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusNotFound, "Controller not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller retrieved successfully", controller)
}

// DeleteController handles controller deletion
// @Summary Delete controller
// @Description Remove a controller from the system; it must be offline
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse "Controller deleted successfully"
// @Failure 500 {object} utils.APIResponse "Deletion failed"
// @Router /controllers/{id} [delete]
func (h *ControllerHandler) DeleteController(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	userID := getUserID(c)
	if err := h.controllerService.DeleteController(c.Request.Context(), controllerID, userID); err != nil {
		h.logger.Error("Failed to delete controller", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller deleted successfully", gin.H{"controller_id": controllerID})
}

// ConnectController connects to a controller
// @Summary Connect to controller
// @Description Open the command channel to a controller and keep it pooled
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse "Controller connected successfully"
// @Failure 500 {object} utils.APIResponse "Connection failed"
// @Router /controllers/{id}/connect [post]
func (h *ControllerHandler) ConnectController(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	if err := h.controllerService.ConnectController(c.Request.Context(), controllerID); err != nil {
		h.logger.Error("Failed to connect controller", zap.Error(err), zap.String("controller_id", controllerID))
		utils.DriverErrorResponse(c, "Failed to connect controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller connected successfully", gin.H{"controller_id": controllerID})
}

// DisconnectController disconnects from a controller
// @Summary Disconnect from controller
// @Description Close the command channel to a controller
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse "Controller disconnected successfully"
// @Failure 500 {object} utils.APIResponse "Disconnection failed"
// @Router /controllers/{id}/disconnect [post]
func (h *ControllerHandler) DisconnectController(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	if err := h.controllerService.DisconnectController(c.Request.Context(), controllerID); err != nil {
		h.logger.Error("Failed to disconnect controller", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to disconnect controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller disconnected successfully", gin.H{"controller_id": controllerID})
}

// TestController tests controller connectivity
// @Summary Test controller connectivity
// @Description Test connection and identify a controller
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=service.TestResult} "Controller test completed"
// @Failure 500 {object} utils.APIResponse "Test failed"
// @Router /controllers/{id}/test [post]
func (h *ControllerHandler) TestController(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	result, err := h.controllerService.TestController(c.Request.Context(), controllerID)
	if err != nil {
		h.logger.Error("Failed to test controller", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to test controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller test completed", result)
}

// GetControllerHealth retrieves controller health metrics
// @Summary Get controller health
// @Description Get current health metrics and status of a controller
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=service.ControllerHealth} "Controller health retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Failed to get controller health"
// @Router /controllers/{id}/health [get]
func (h *ControllerHandler) GetControllerHealth(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	health, err := h.controllerService.GetControllerHealth(c.Request.Context(), controllerID)
	if err != nil {
		h.logger.Error("Failed to get controller health", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get controller health", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller health retrieved successfully", health)
}

// UpdateControllerConfig updates controller configuration
// @Summary Update controller configuration
// @Description Update controller connection configuration; the controller must be offline
// @Tags Controllers
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param request body UpdateConfigRequest true "Configuration update request"
// @Success 200 {object} utils.APIResponse "Controller configuration updated successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 500 {object} utils.APIResponse "Update failed"
// @Router /controllers/{id}/config [put]
func (h *ControllerHandler) UpdateControllerConfig(c *gin.Context) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userID := getUserID(c)
	if err := h.controllerService.UpdateControllerConfiguration(c.Request.Context(), controllerID, req.Config, userID); err != nil {
		h.logger.Error("Failed to update controller config", zap.Error(err), zap.String("controller_id", controllerID))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to update controller configuration", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller configuration updated successfully", gin.H{"controller_id": controllerID})
}

// GetControllerStats retrieves aggregate controller statistics
// @Summary Get controller statistics
// @Description Get controller counts grouped by brand and status
// @Tags Controllers
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse{data=repository.ControllerStats} "Statistics retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Failed to get statistics"
// @Router /controllers/stats [get]
func (h *ControllerHandler) GetControllerStats(c *gin.Context) {
	stats, err := h.controllerService.GetStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get controller stats", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get controller statistics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// Helper functions and DTOs

// getUserID extracts user ID from context
func getUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		return userID.(string)
	}
	return ""
}

// UpdateConfigRequest represents configuration update request
type UpdateConfigRequest struct {
	Config map[string]interface{} `json:"config"`
}
