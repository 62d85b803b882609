// internal/handler/operation_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/service"
	"tempctl-service/internal/utils"
)

// OperationHandler handles operation-related HTTP requests
type OperationHandler struct {
	operationService  *service.OperationService
	controllerService *service.ControllerService
	logger            *utils.ServiceLogger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(operationService *service.OperationService, controllerService *service.ControllerService, logger *zap.Logger) *OperationHandler {
	return &OperationHandler{
		operationService:  operationService,
		controllerService: controllerService,
		logger:            utils.NewServiceLogger(logger, "operation-handler"),
	}
}

// RegisterRoutes registers generic operation routes
func (h *OperationHandler) RegisterRoutes(router *gin.RouterGroup) {
	operations := router.Group("/operations")
	{
		operations.POST("", h.ExecuteOperation)
		operations.GET("", h.ListOperations)
		operations.GET("/stats", h.GetOperationStats)
		operations.GET("/:id", h.GetOperation)
		operations.PUT("/:id/cancel", h.CancelOperation)
	}
}

// RegisterControllerRoutes registers the typed per-controller operation routes
func (h *OperationHandler) RegisterControllerRoutes(router *gin.RouterGroup) {
	controllerOps := router.Group("/controllers/:id")
	{
		controllerOps.GET("/channels/:channel/value", h.ReadChannel)
		controllerOps.GET("/channels/:channel/readings", h.ListReadings)
		controllerOps.GET("/channels/:channel/setpoint", h.ReadSetpoint)
		controllerOps.PUT("/channels/:channel/setpoint", h.WriteSetpoint)
		controllerOps.POST("/heater/enable", h.EnableHeater)
		controllerOps.POST("/heater/disable", h.DisableHeater)
		controllerOps.POST("/pid/:channel/enable", h.EnablePID)
		controllerOps.POST("/pid/:channel/disable", h.DisablePID)
		controllerOps.POST("/pid/:channel/tune", h.TunePID)
		controllerOps.POST("/alarms/:channel", h.SetAlarm)
		controllerOps.DELETE("/alarms/:channel", h.ClearAlarm)
		controllerOps.GET("/status", h.CheckStatus)
	}
}

// resolveController maps the external controller identifier to its UUID
func (h *OperationHandler) resolveController(c *gin.Context) (uuid.UUID, bool) {
	controllerID := c.Param("id")
	if controllerID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Controller ID is required", nil)
		return uuid.Nil, false
	}

	controller, err := h.controllerService.GetController(c.Request.Context(), controllerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Controller not found", err)
		return uuid.Nil, false
	}

	return controller.ID, true
}

// ExecuteOperation handles general operation execution
// @Summary Execute operation
// @Description Execute an arbitrary control operation on a controller
// @Tags Operations
// @Accept json
// @Produce json
// @Param request body service.OperationRequest true "Operation request"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Operation executed successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 500 {object} utils.APIResponse "Operation failed"
// @Router /operations [post]
func (h *OperationHandler) ExecuteOperation(c *gin.Context) {
	var req service.OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	response, err := h.operationService.ExecuteOperation(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to execute operation", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to execute operation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation executed successfully", response)
}

// ReadChannel reads the current temperature of a channel
// @Summary Read channel temperature
// @Description Read the current temperature of a sensor channel in kelvin
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Success 200 {object} utils.APIResponse "Temperature read successfully"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Failure 504 {object} utils.APIResponse "Instrument did not answer"
// @Router /controllers/{id}/channels/{channel}/value [get]
func (h *OperationHandler) ReadChannel(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	value, response, err := h.operationService.ReadChannel(c.Request.Context(), id, c.Param("channel"))
	if err != nil {
		h.logger.Error("Failed to read channel", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to read channel", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Temperature read successfully", gin.H{
		"channel":      c.Param("channel"),
		"value":        value,
		"unit":         model.UnitKelvin,
		"operation_id": response.OperationID,
	})
}

// ListReadings returns stored readings for a channel
// @Summary List channel readings
// @Description Get the stored temperature history of a channel
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Param since query string false "RFC3339 start time, defaults to last 24h"
// @Param limit query int false "Maximum readings returned" default(1000)
// @Success 200 {object} utils.APIResponse{data=[]model.Reading} "Readings retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/channels/{channel}/readings [get]
func (h *OperationHandler) ListReadings(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid since parameter", err)
			return
		}
		since = parsed
	}

	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	readings, err := h.operationService.ListReadings(c.Request.Context(), id, c.Param("channel"), since, limit)
	if err != nil {
		h.logger.Error("Failed to list readings", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list readings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Readings retrieved successfully", readings)
}

// ReadSetpoint reads the PID setpoint of a channel
// @Summary Read setpoint
// @Description Read the PID setpoint of an output channel in kelvin
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Success 200 {object} utils.APIResponse "Setpoint read successfully"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/channels/{channel}/setpoint [get]
func (h *OperationHandler) ReadSetpoint(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	value, response, err := h.operationService.ReadSetpoint(c.Request.Context(), id, c.Param("channel"))
	if err != nil {
		h.logger.Error("Failed to read setpoint", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to read setpoint", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Setpoint read successfully", gin.H{
		"channel":      c.Param("channel"),
		"setpoint":     value,
		"unit":         model.UnitKelvin,
		"operation_id": response.OperationID,
	})
}

// WriteSetpoint writes the PID setpoint of a channel
// @Summary Write setpoint
// @Description Change the PID setpoint of an output channel
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Param request body SetpointRequest true "Setpoint request"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Setpoint written successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/channels/{channel}/setpoint [put]
func (h *OperationHandler) WriteSetpoint(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	var req SetpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	response, err := h.operationService.WriteSetpoint(c.Request.Context(), id, c.Param("channel"), req.Setpoint, getUserID(c))
	if err != nil {
		h.logger.Error("Failed to write setpoint", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to write setpoint", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Setpoint written successfully", response)
}

// EnableHeater turns the heater output on
// @Summary Enable heater
// @Description Turn the controller heater output on
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Heater enabled"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/heater/enable [post]
func (h *OperationHandler) EnableHeater(c *gin.Context) {
	h.toggleHeater(c, true)
}

// DisableHeater turns the heater output off
// @Summary Disable heater
// @Description Turn the controller heater output off
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Heater disabled"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/heater/disable [post]
func (h *OperationHandler) DisableHeater(c *gin.Context) {
	h.toggleHeater(c, false)
}

func (h *OperationHandler) toggleHeater(c *gin.Context, enabled bool) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	response, err := h.operationService.SetHeater(c.Request.Context(), id, enabled, getUserID(c))
	if err != nil {
		h.logger.Error("Failed to toggle heater", zap.Error(err), zap.Bool("enabled", enabled))
		utils.DriverErrorResponse(c, "Failed to toggle heater", err)
		return
	}

	message := "Heater enabled"
	if !enabled {
		message = "Heater disabled"
	}
	utils.SuccessResponse(c, http.StatusOK, message, response)
}

// EnablePID turns the PID feedback loop on for a channel
// @Summary Enable PID loop
// @Description Enable the PID feedback loop of an output channel; the heater is enabled first
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "PID loop enabled"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/pid/{channel}/enable [post]
func (h *OperationHandler) EnablePID(c *gin.Context) {
	h.togglePID(c, true)
}

// DisablePID turns the PID feedback loop off for a channel
// @Summary Disable PID loop
// @Description Disable the PID feedback loop of an output channel
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "PID loop disabled"
// @Failure 404 {object} utils.APIResponse "Controller not found"
// @Router /controllers/{id}/pid/{channel}/disable [post]
func (h *OperationHandler) DisablePID(c *gin.Context) {
	h.togglePID(c, false)
}

func (h *OperationHandler) togglePID(c *gin.Context, enabled bool) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	response, err := h.operationService.SetPID(c.Request.Context(), id, c.Param("channel"), enabled)
	if err != nil {
		h.logger.Error("Failed to toggle PID loop", zap.Error(err), zap.Bool("enabled", enabled))
		utils.DriverErrorResponse(c, "Failed to toggle PID loop", err)
		return
	}

	message := "PID loop enabled"
	if !enabled {
		message = "PID loop disabled"
	}
	utils.SuccessResponse(c, http.StatusOK, message, response)
}

// TunePID runs a PID autotune cycle
// @Summary Run PID autotune
// @Description Run a PID autotune cycle on an output channel. The heater applies the
// @Description requested step power for the lag window, then the tune outcome is checked.
// @Description The sample temperature should be stable before starting.
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Param request body TuneRequest true "Tune request"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Autotune completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 422 {object} utils.APIResponse "Autotune did not converge"
// @Router /controllers/{id}/pid/{channel}/tune [post]
func (h *OperationHandler) TunePID(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	var req TuneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.StepPower.Sign() <= 0 || req.LagSeconds <= 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "step_power and lag_seconds must be positive", nil)
		return
	}

	response, err := h.operationService.TunePID(c.Request.Context(), id, c.Param("channel"), req.StepPower, req.LagSeconds)
	if err != nil {
		h.logger.Error("PID autotune failed", zap.Error(err))
		utils.DriverErrorResponse(c, "PID autotune failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Autotune completed", response)
}

// SetAlarm configures a temperature window alarm
// @Summary Set channel alarm
// @Description Arm an audible alarm that fires when a channel leaves the temperature window
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Param request body AlarmRequest true "Alarm request"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Alarm armed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Router /controllers/{id}/alarms/{channel} [post]
func (h *OperationHandler) SetAlarm(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	var req AlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.MinTemp.GreaterThanOrEqual(req.MaxTemp) {
		utils.ErrorResponse(c, http.StatusBadRequest, "min_temp must be below max_temp", nil)
		return
	}

	response, err := h.operationService.SetAlarm(c.Request.Context(), id, c.Param("channel"), req.MinTemp, req.MaxTemp)
	if err != nil {
		h.logger.Error("Failed to set alarm", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to set alarm", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alarm armed", response)
}

// ClearAlarm disables the alarm on a channel
// @Summary Clear channel alarm
// @Description Disarm the alarm on a channel
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Param channel path string true "Channel name"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Alarm cleared"
// @Router /controllers/{id}/alarms/{channel} [delete]
func (h *OperationHandler) ClearAlarm(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	response, err := h.operationService.ClearAlarm(c.Request.Context(), id, c.Param("channel"))
	if err != nil {
		h.logger.Error("Failed to clear alarm", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to clear alarm", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alarm cleared", response)
}

// CheckStatus queries the live controller status
// @Summary Check controller status
// @Description Query the instrument for its current status
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Controller ID"
// @Success 200 {object} utils.APIResponse{data=service.OperationResponse} "Status checked"
// @Router /controllers/{id}/status [get]
func (h *OperationHandler) CheckStatus(c *gin.Context) {
	id, ok := h.resolveController(c)
	if !ok {
		return
	}

	response, err := h.operationService.CheckStatus(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to check status", zap.Error(err))
		utils.DriverErrorResponse(c, "Failed to check status", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Status checked", response)
}

// GetOperation retrieves operation details
// @Summary Get operation details
// @Description Get a stored operation record by ID
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} utils.APIResponse{data=model.ControlOperation} "Operation retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Operation not found"
// @Router /operations/{id} [get]
func (h *OperationHandler) GetOperation(c *gin.Context) {
	operationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation ID", err)
		return
	}

	operation, err := h.operationService.GetOperation(c.Request.Context(), operationID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Operation not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation retrieved successfully", operation)
}

// ListOperations lists operations with filtering
// @Summary List operations
// @Description Get list of operations with filtering and pagination support
// @Tags Operations
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param controller_id query string false "Filter by controller UUID"
// @Param operation_type query string false "Filter by operation type"
// @Param status query string false "Filter by status" Enums(PENDING, PROCESSING, SUCCESS, FAILED, TIMEOUT, CANCELLED)
// @Success 200 {object} utils.APIResponse{data=object{operations=[]model.ControlOperation,pagination=service.PaginationResult}} "Operations retrieved successfully"
// @Router /operations [get]
func (h *OperationHandler) ListOperations(c *gin.Context) {
	filter := &service.OperationFilter{
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

	if controllerID := c.Query("controller_id"); controllerID != "" {
		if id, err := uuid.Parse(controllerID); err == nil {
			filter.ControllerID = &id
		}
	}
	if operationType := c.Query("operation_type"); operationType != "" {
		ot := model.OperationType(operationType)
		filter.OperationType = &ot
	}
	if status := c.Query("status"); status != "" {
		s := model.OperationStatus(status)
		filter.Status = &s
	}

	operations, pagination, err := h.operationService.ListOperations(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list operations", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list operations", err)
		return
	}

	response := gin.H{
		"operations": operations,
		"pagination": pagination,
	}

	utils.SuccessResponse(c, http.StatusOK, "Operations retrieved successfully", response)
}

// CancelOperation cancels a pending operation
// @Summary Cancel operation
// @Description Cancel a pending or processing operation
// @Tags Operations
// @Accept json
// @Produce json
// @Param id path string true "Operation ID"
// @Param request body CancelRequest false "Cancel request"
// @Success 200 {object} utils.APIResponse "Operation cancelled"
// @Failure 400 {object} utils.APIResponse "Operation not cancellable"
// @Router /operations/{id}/cancel [put]
func (h *OperationHandler) CancelOperation(c *gin.Context) {
	operationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation ID", err)
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = "cancelled by user"
	}

	if err := h.operationService.CancelOperation(c.Request.Context(), operationID, req.Reason); err != nil {
		h.logger.Error("Failed to cancel operation", zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to cancel operation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation cancelled", gin.H{"operation_id": operationID})
}

// GetOperationStats retrieves aggregate operation statistics
// @Summary Get operation statistics
// @Description Get operation counts and average duration grouped by type, status and priority
// @Tags Operations
// @Accept json
// @Produce json
// @Param controller_id query string false "Filter by controller UUID"
// @Success 200 {object} utils.APIResponse{data=repository.OperationStats} "Statistics retrieved successfully"
// @Router /operations/stats [get]
func (h *OperationHandler) GetOperationStats(c *gin.Context) {
	filter := &repository.OperationStatsFilter{}

	if controllerID := c.Query("controller_id"); controllerID != "" {
		if id, err := uuid.Parse(controllerID); err == nil {
			filter.ControllerID = &id
		}
	}

	stats, err := h.operationService.GetOperationStats(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to get operation stats", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get operation statistics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// DTOs

// SetpointRequest represents a setpoint write request
type SetpointRequest struct {
	Setpoint decimal.Decimal `json:"setpoint" binding:"required"`
}

// TuneRequest represents a PID autotune request
type TuneRequest struct {
	StepPower  decimal.Decimal `json:"step_power" binding:"required"`
	LagSeconds int             `json:"lag_seconds" binding:"required"`
}

// AlarmRequest represents an alarm configuration request
type AlarmRequest struct {
	MinTemp decimal.Decimal `json:"min_temp"`
	MaxTemp decimal.Decimal `json:"max_temp"`
}

// CancelRequest represents an operation cancel request
type CancelRequest struct {
	Reason string `json:"reason"`
}
