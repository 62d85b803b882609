// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	internalDriver "tempctl-service/internal/driver"
	"tempctl-service/internal/service"
	"tempctl-service/internal/utils"
)

// DiscoveryHandler handles controller discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	driverRegistry   *internalDriver.Registry
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, driverRegistry *internalDriver.Registry, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		driverRegistry:   driverRegistry,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/scan", h.ScanControllers)
		discovery.POST("/auto-setup", h.AutoSetupControllers)
		discovery.GET("/supported", h.GetSupportedControllers)
	}
}

// ScanControllers scans for reachable instruments
// @Summary Scan for controllers
// @Description Scan serial ports, USB and configured network hosts for temperature controllers
// @Tags Discovery
// @Accept json
// @Produce json
// @Param type query string false "Scan type" Enums(all, serial, usb, tcp) default(all)
// @Success 200 {object} utils.APIResponse{data=object{controllers_found=int,controllers=[]service.DiscoveredController}} "Controller scan completed"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanControllers(c *gin.Context) {
	scanType := c.DefaultQuery("type", "all")

	controllers, err := h.discoveryService.ScanControllers(c.Request.Context(), &service.ScanRequest{
		ScanType: scanType,
	})
	if err != nil {
		h.logger.Error("Failed to scan controllers", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan controllers", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Controller scan completed", gin.H{
		"controllers_found": len(controllers),
		"controllers":       controllers,
	})
}

// AutoSetupControllers automatically registers discovered instruments
// @Summary Auto-setup controllers
// @Description Automatically register and optionally connect discovered controllers
// @Tags Discovery
// @Accept json
// @Produce json
// @Param request body service.AutoSetupRequest true "Auto-setup request"
// @Success 200 {object} utils.APIResponse{data=service.AutoSetupResult} "Auto-setup completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 500 {object} utils.APIResponse "Auto-setup failed"
// @Router /discovery/auto-setup [post]
func (h *DiscoveryHandler) AutoSetupControllers(c *gin.Context) {
	var req service.AutoSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.discoveryService.AutoSetupControllers(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to auto-setup controllers", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to auto-setup controllers", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Auto-setup completed", result)
}

// GetSupportedControllers returns supported controller models
// @Summary Get supported controllers
// @Description Get list of all supported controller brands and models
// @Tags Discovery
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse "Supported controllers retrieved"
// @Router /discovery/supported [get]
func (h *DiscoveryHandler) GetSupportedControllers(c *gin.Context) {
	drivers := h.driverRegistry.ListDrivers()

	supported := make([]gin.H, 0, len(drivers))
	for _, key := range drivers {
		supported = append(supported, gin.H{
			"brand": key.Brand,
			"model": key.Model,
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "Supported controllers retrieved", gin.H{
		"brands":  h.driverRegistry.GetSupportedBrands(),
		"drivers": supported,
	})
}
