// internal/service/controller_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempctl-service/internal/config"
	internalDriver "tempctl-service/internal/driver"
	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/utils"
	"tempctl-service/pkg/driver"
)

// ControllerService handles controller management business logic
type ControllerService struct {
	controllerRepo repository.ControllerRepository
	operationRepo  repository.OperationRepository
	driverRegistry *internalDriver.Registry
	driverPool     *DriverPool
	config         *config.Config
	logger         *utils.ServiceLogger
	auditLogger    *utils.AuditLogger
	eventHandler   driver.EventHandler
}

// NewControllerService creates a new controller service instance
func NewControllerService(
	controllerRepo repository.ControllerRepository,
	operationRepo repository.OperationRepository,
	driverRegistry *internalDriver.Registry,
	driverPool *DriverPool,
	config *config.Config,
	logger *zap.Logger,
) *ControllerService {
	return &ControllerService{
		controllerRepo: controllerRepo,
		operationRepo:  operationRepo,
		driverRegistry: driverRegistry,
		driverPool:     driverPool,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "controller-service"),
		auditLogger:    utils.NewAuditLogger(logger),
	}
}

// SetEventHandler sets the handler attached to drivers on connect
func (cs *ControllerService) SetEventHandler(handler driver.EventHandler) {
	cs.eventHandler = handler
}

// RegisterController registers a new controller in the system
func (cs *ControllerService) RegisterController(ctx context.Context, req *RegisterControllerRequest) (*model.Controller, error) {
	// Validate request
	if err := cs.validateRegisterRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if controller already exists
	existing, err := cs.controllerRepo.GetByControllerID(ctx, req.ControllerID)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("controller with ID %s already exists", req.ControllerID)
	}

	// Verify driver support
	if !cs.driverRegistry.IsSupported(req.Brand, req.Model) {
		return nil, fmt.Errorf("unsupported controller: %s %s", req.Brand, req.Model)
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = defaultChannels(req.Brand)
	}

	// Create controller model
	controller := &model.Controller{
		ID:               uuid.New(),
		ControllerID:     req.ControllerID,
		Brand:            req.Brand,
		Model:            req.Model,
		FirmwareVersion:  req.FirmwareVersion,
		ConnectionType:   req.ConnectionType,
		ConnectionConfig: model.JSONObject(req.ConnectionConfig),
		Capabilities:     controllerCapabilities(req.Brand),
		Channels:         toJSONArray(channels),
		Location:         req.Location,
		Status:           model.ControllerStatusOffline,
		ErrorInfo:        model.JSONObject{},
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	// Save to database
	if err := cs.controllerRepo.Create(ctx, controller); err != nil {
		cs.logger.Error("Failed to create controller", zap.Error(err))
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	// Audit log
	cs.auditLogger.LogControllerRegistration(
		controller.ControllerID,
		string(controller.Brand),
		controller.Model,
		req.UserID,
		true,
	)

	cs.logger.Info("Controller registered successfully",
		zap.String("controller_id", controller.ControllerID),
		zap.String("brand", string(controller.Brand)),
		zap.String("model", controller.Model),
	)

	return controller, nil
}

// ConnectController attempts to connect to a controller and pools the driver
func (cs *ControllerService) ConnectController(ctx context.Context, controllerID string) error {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("controller not found: %w", err)
	}

	controllerLogger := utils.NewControllerLogger(cs.logger.Logger, controller.ControllerID, string(controller.Brand), controller.Model)

	// Update status to connecting
	controller.Status = model.ControllerStatusConnecting
	if err := cs.controllerRepo.UpdateStatus(ctx, controller.ID, controller.Status); err != nil {
		controllerLogger.Error("Failed to update controller status", zap.Error(err))
	}

	// Create driver
	driverInstance, err := cs.driverRegistry.CreateDriver(controller, controller.ConnectionConfig)
	if err != nil {
		controllerLogger.LogConnection("create_driver", false, err)
		cs.updateControllerError(ctx, controller, err)
		return fmt.Errorf("failed to create driver: %w", err)
	}

	if cs.eventHandler != nil {
		driverInstance.SetEventHandler(cs.eventHandler)
	}

	// Attempt connection
	connectCtx, cancel := context.WithTimeout(ctx, cs.config.Controller.CommandTimeout+10*time.Second)
	defer cancel()

	if err := driverInstance.Connect(connectCtx); err != nil {
		controllerLogger.LogConnection("connect", false, err)
		cs.updateControllerError(ctx, controller, err)
		return fmt.Errorf("failed to connect to controller: %w", err)
	}

	// Pool the driver so operations and polling share the link
	cs.driverPool.Store(controller.ID, driverInstance)

	// Pick up firmware version from the instrument when available
	if info, err := driverInstance.GetControllerInfo(); err == nil && info.FirmwareVersion != "" {
		controller.FirmwareVersion = &info.FirmwareVersion
	}

	now := time.Now()
	controller.Status = model.ControllerStatusOnline
	controller.LastPing = &now
	controller.ErrorInfo = model.JSONObject{}

	if err := cs.controllerRepo.Update(ctx, controller); err != nil {
		controllerLogger.Error("Failed to update controller after connection", zap.Error(err))
	}

	controllerLogger.LogConnection("connect", true, nil)

	// Start health monitoring
	go cs.monitorControllerHealth(controller.ID, controller.ControllerID, driverInstance)

	return nil
}

// DisconnectController disconnects a controller and removes its pooled driver
func (cs *ControllerService) DisconnectController(ctx context.Context, controllerID string) error {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("controller not found: %w", err)
	}

	controllerLogger := utils.NewControllerLogger(cs.logger.Logger, controller.ControllerID, string(controller.Brand), controller.Model)

	if driverInstance, ok := cs.driverPool.Get(controller.ID); ok {
		if err := driverInstance.Disconnect(ctx); err != nil {
			controllerLogger.Warn("Driver disconnect failed", zap.Error(err))
		}
		cs.driverPool.Remove(controller.ID)
	}

	controller.Status = model.ControllerStatusOffline
	if err := cs.controllerRepo.UpdateStatus(ctx, controller.ID, controller.Status); err != nil {
		controllerLogger.Error("Failed to update controller status", zap.Error(err))
	}

	controllerLogger.LogConnection("disconnect", true, nil)
	return nil
}

// GetController retrieves controller information
func (cs *ControllerService) GetController(ctx context.Context, controllerID string) (*model.Controller, error) {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return nil, fmt.Errorf("controller not found: %w", err)
	}
	return controller, nil
}

// ListControllers retrieves controllers with filtering
func (cs *ControllerService) ListControllers(ctx context.Context, filter *ControllerFilter) ([]*model.Controller, *PaginationResult, error) {
	controllers, total, err := cs.controllerRepo.List(ctx, filter.toRepoFilter())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list controllers: %w", err)
	}

	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	pagination := &PaginationResult{
		Total:      total,
		Page:       filter.Page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}

	return controllers, pagination, nil
}

// UpdateControllerConfiguration updates controller connection configuration
func (cs *ControllerService) UpdateControllerConfiguration(ctx context.Context, controllerID string, config map[string]interface{}, userID string) error {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("controller not found: %w", err)
	}

	if controller.IsOnline() {
		return fmt.Errorf("cannot reconfigure online controller, disconnect first")
	}

	oldConfig := controller.ConnectionConfig
	controller.ConnectionConfig = model.JSONObject(config)
	controller.UpdatedAt = time.Now()

	if err := cs.controllerRepo.Update(ctx, controller); err != nil {
		return fmt.Errorf("failed to update controller configuration: %w", err)
	}

	// Audit log
	cs.auditLogger.LogControllerConfiguration(controllerID, userID, oldConfig, config)

	cs.logger.Info("Controller configuration updated",
		zap.String("controller_id", controllerID),
		zap.String("user_id", userID),
	)

	return nil
}

// DeleteController removes a controller from the system
func (cs *ControllerService) DeleteController(ctx context.Context, controllerID string, userID string) error {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("controller not found: %w", err)
	}

	if controller.IsOnline() {
		return fmt.Errorf("cannot delete online controller, disconnect first")
	}

	if err := cs.controllerRepo.Delete(ctx, controller.ID); err != nil {
		return fmt.Errorf("failed to delete controller: %w", err)
	}

	cs.logger.Info("Controller deleted",
		zap.String("controller_id", controllerID),
		zap.String("user_id", userID),
	)

	return nil
}

// GetControllerHealth retrieves controller health metrics
func (cs *ControllerService) GetControllerHealth(ctx context.Context, controllerID string) (*ControllerHealth, error) {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return nil, fmt.Errorf("controller not found: %w", err)
	}

	health := &ControllerHealth{
		ControllerID: controllerID,
		Status:       string(controller.Status),
		LastCheck:    controller.LastPing,
	}

	driverInstance, ok := cs.driverPool.Get(controller.ID)
	if !ok {
		return health, nil
	}

	metrics, err := driverInstance.GetHealthMetrics()
	if err != nil {
		return health, nil
	}

	health.HealthScore = metrics.HealthScore
	health.ResponseTimeMs = metrics.ResponseTime.Milliseconds()
	health.SuccessRate = metrics.SuccessRate
	health.ErrorCount = metrics.ErrorCount
	health.TotalOperations = metrics.TotalOperations

	return health, nil
}

// TestController performs a controller connectivity test
func (cs *ControllerService) TestController(ctx context.Context, controllerID string) (*TestResult, error) {
	controller, err := cs.controllerRepo.GetByControllerID(ctx, controllerID)
	if err != nil {
		return nil, fmt.Errorf("controller not found: %w", err)
	}

	controllerLogger := utils.NewControllerLogger(cs.logger.Logger, controller.ControllerID, string(controller.Brand), controller.Model)

	startTime := time.Now()

	// An already-pooled driver is tested in place; otherwise a throwaway
	// instance is created for the test
	driverInstance, pooled := cs.driverPool.Get(controller.ID)
	if !pooled {
		driverInstance, err = cs.driverRegistry.CreateDriver(controller, controller.ConnectionConfig)
		if err != nil {
			return &TestResult{
				Success:      false,
				ErrorMessage: err.Error(),
				Duration:     time.Since(startTime).String(),
			}, nil
		}

		testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := driverInstance.Connect(testCtx); err != nil {
			controllerLogger.LogConnection("test", false, err)
			return &TestResult{
				Success:      false,
				ErrorMessage: err.Error(),
				Duration:     time.Since(startTime).String(),
			}, nil
		}
		defer driverInstance.Disconnect(ctx)
		defer driverInstance.Close()
	}

	pingCtx, cancel := context.WithTimeout(ctx, cs.config.Controller.CommandTimeout)
	defer cancel()

	if err := driverInstance.Ping(pingCtx); err != nil {
		controllerLogger.LogConnection("test", false, err)
		return &TestResult{
			Success:      false,
			ErrorMessage: err.Error(),
			Duration:     time.Since(startTime).String(),
		}, nil
	}

	info, err := driverInstance.GetControllerInfo()
	if err != nil {
		controllerLogger.Warn("Failed to get controller info during test", zap.Error(err))
	}

	controllerLogger.LogConnection("test", true, nil)

	return &TestResult{
		Success:        true,
		Duration:       time.Since(startTime).String(),
		ControllerInfo: info,
	}, nil
}

// GetStats retrieves aggregate controller statistics
func (cs *ControllerService) GetStats(ctx context.Context) (*repository.ControllerStats, error) {
	stats, err := cs.controllerRepo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get controller stats: %w", err)
	}
	return stats, nil
}

// Helper methods

// validateRegisterRequest validates controller registration request
func (cs *ControllerService) validateRegisterRequest(req *RegisterControllerRequest) error {
	if req.ControllerID == "" {
		return fmt.Errorf("controller_id is required")
	}
	if req.Brand == "" {
		return fmt.Errorf("brand is required")
	}
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}
	if req.ConnectionType == "" {
		return fmt.Errorf("connection_type is required")
	}
	if req.ConnectionConfig == nil {
		return fmt.Errorf("connection_config is required")
	}
	return nil
}

// controllerCapabilities returns capabilities for a controller brand
func controllerCapabilities(brand model.ControllerBrand) model.JSONArray {
	capabilities := []interface{}{
		string(model.CapabilityRead),
		string(model.CapabilitySetpoint),
		string(model.CapabilityHeater),
		string(model.CapabilityAlarm),
		string(model.CapabilityStatus),
	}

	// Only the CTC100 exposes PID autotune over its remote interface
	if brand == model.BrandSRS {
		capabilities = append(capabilities, string(model.CapabilityPIDTune))
	}

	return model.JSONArray(capabilities)
}

// defaultChannels returns the factory channel layout for a brand
func defaultChannels(brand model.ControllerBrand) []string {
	switch brand {
	case model.BrandSRS:
		// CTC100 base unit has four sensor inputs
		return []string{"1", "2", "3", "4"}
	case model.BrandLakeshore:
		// Model 331/332 have inputs A and B
		return []string{"A", "B"}
	default:
		return []string{"1"}
	}
}

// toJSONArray converts a string slice to the JSONB array type
func toJSONArray(values []string) model.JSONArray {
	arr := make(model.JSONArray, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return arr
}

// updateControllerError updates controller with error information
func (cs *ControllerService) updateControllerError(ctx context.Context, controller *model.Controller, err error) {
	controller.Status = model.ControllerStatusError
	controller.ErrorInfo = model.JSONObject{
		"last_error":     err.Error(),
		"error_time":     time.Now(),
		"error_count":    1,
		"critical_error": true,
	}

	if updateErr := cs.controllerRepo.Update(ctx, controller); updateErr != nil {
		cs.logger.Error("Failed to update controller error", zap.Error(updateErr))
	}
}

// monitorControllerHealth pings a pooled driver on an interval, keeping
// last_ping fresh and marking the controller offline after repeated failures.
// The loop exits when the driver leaves the pool.
func (cs *ControllerService) monitorControllerHealth(id uuid.UUID, controllerID string, driverInstance driver.ControllerDriver) {
	controllerLogger := cs.logger.With(zap.String("controller_id", controllerID))

	ticker := time.NewTicker(cs.config.Controller.HealthCheckInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for range ticker.C {
		pooled, ok := cs.driverPool.Get(id)
		if !ok || pooled != driverInstance {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cs.config.Controller.CommandTimeout+time.Second)

		startTime := time.Now()
		err := driverInstance.Ping(ctx)
		responseTime := time.Since(startTime)

		if err != nil {
			consecutiveFailures++
			controllerLogger.Warn("Controller ping failed",
				zap.Error(err),
				zap.Int("consecutive_failures", consecutiveFailures),
			)

			if consecutiveFailures >= 3 {
				if updateErr := cs.controllerRepo.UpdateStatus(ctx, id, model.ControllerStatusError); updateErr != nil {
					controllerLogger.Error("Failed to mark controller unhealthy", zap.Error(updateErr))
				}
			}
		} else {
			consecutiveFailures = 0
			if updateErr := cs.controllerRepo.UpdateLastPing(ctx, id, time.Now()); updateErr != nil {
				controllerLogger.Error("Failed to update last ping", zap.Error(updateErr))
			}

			if metrics, metricsErr := driverInstance.GetHealthMetrics(); metricsErr == nil {
				controllerLogger.Debug("Controller health check",
					zap.Int("health_score", metrics.HealthScore),
					zap.Duration("response_time", responseTime),
				)
			}
		}

		cancel()
	}
}

// Data Transfer Objects

// RegisterControllerRequest represents controller registration request
type RegisterControllerRequest struct {
	ControllerID     string                 `json:"controller_id"`
	Brand            model.ControllerBrand  `json:"brand"`
	Model            string                 `json:"model"`
	FirmwareVersion  *string                `json:"firmware_version,omitempty"`
	ConnectionType   model.ConnectionType   `json:"connection_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	Channels         []string               `json:"channels,omitempty"`
	Location         *string                `json:"location,omitempty"`
	UserID           string                 `json:"user_id"`
}

// ControllerFilter represents controller listing filters
type ControllerFilter struct {
	Brand      *model.ControllerBrand  `json:"brand,omitempty"`
	Status     *model.ControllerStatus `json:"status,omitempty"`
	Location   *string                 `json:"location,omitempty"`
	SearchTerm *string                 `json:"search_term,omitempty"`
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

// toRepoFilter converts to repository filter
func (cf *ControllerFilter) toRepoFilter() *repository.ControllerFilter {
	return &repository.ControllerFilter{
		Brand:      cf.Brand,
		Status:     cf.Status,
		Location:   cf.Location,
		SearchTerm: cf.SearchTerm,
		Page:       cf.Page,
		PerPage:    cf.PerPage,
		SortBy:     cf.SortBy,
		SortOrder:  cf.SortOrder,
	}
}

// PaginationResult represents pagination information
type PaginationResult struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// ControllerHealth represents controller health information
type ControllerHealth struct {
	ControllerID    string     `json:"controller_id"`
	HealthScore     int        `json:"health_score"`
	Status          string     `json:"status"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
	ResponseTimeMs  int64      `json:"response_time_ms"`
	SuccessRate     float64    `json:"success_rate"`
	ErrorCount      int64      `json:"error_count"`
	TotalOperations int64      `json:"total_operations"`
}

// TestResult represents controller test result
type TestResult struct {
	Success        bool                   `json:"success"`
	Duration       string                 `json:"duration"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ControllerInfo *driver.ControllerInfo `json:"controller_info,omitempty"`
}
