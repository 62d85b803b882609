// internal/service/operation_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/utils"
)

// OperationService handles controller operation business logic
type OperationService struct {
	operationRepo  repository.OperationRepository
	controllerRepo repository.ControllerRepository
	readingRepo    repository.ReadingRepository
	driverPool     *DriverPool
	config         *config.Config
	logger         *utils.ServiceLogger
	auditLogger    *utils.AuditLogger
}

// NewOperationService creates a new operation service instance
func NewOperationService(
	operationRepo repository.OperationRepository,
	controllerRepo repository.ControllerRepository,
	readingRepo repository.ReadingRepository,
	driverPool *DriverPool,
	config *config.Config,
	logger *zap.Logger,
) *OperationService {
	return &OperationService{
		operationRepo:  operationRepo,
		controllerRepo: controllerRepo,
		readingRepo:    readingRepo,
		driverPool:     driverPool,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "operation-service"),
		auditLogger:    utils.NewAuditLogger(logger),
	}
}

// ExecuteOperation executes an operation on a controller
func (os *OperationService) ExecuteOperation(ctx context.Context, req *OperationRequest) (*OperationResponse, error) {
	if req.Priority == 0 {
		req.Priority = operationPriority(req.OperationType)
	}

	// Create operation record
	operation := &model.ControlOperation{
		ID:            uuid.New(),
		ControllerID:  req.ControllerID,
		OperationType: req.OperationType,
		OperationData: model.JSONObject(req.Data),
		Priority:      req.Priority,
		Status:        model.OperationStatusPending,
		StartedAt:     time.Now(),
		CorrelationID: req.CorrelationID,
		Result:        model.JSONObject{},
		CreatedAt:     time.Now(),
	}

	// Save operation to database
	if err := os.operationRepo.Create(ctx, operation); err != nil {
		return nil, fmt.Errorf("failed to create operation: %w", err)
	}

	// Create operation logger
	opLogger := utils.NewOperationLogger(os.logger.Logger, string(req.OperationType), operation.ID.String())
	opLogger.Start(zap.String("controller_id", req.ControllerID.String()))

	// Get controller
	controller, err := os.controllerRepo.GetByID(ctx, req.ControllerID)
	if err != nil {
		os.updateOperationError(ctx, operation, err)
		opLogger.Error(err)
		return nil, fmt.Errorf("controller not found: %w", err)
	}

	// Check if controller is online
	if !controller.IsOnline() {
		err := fmt.Errorf("controller is not online: %s", controller.Status)
		os.updateOperationError(ctx, operation, err)
		opLogger.Error(err)
		return nil, err
	}

	// Fetch the pooled driver; connect must have happened first
	driverInstance, ok := os.driverPool.Get(controller.ID)
	if !ok {
		err := fmt.Errorf("no active connection for controller %s", controller.ControllerID)
		os.updateOperationError(ctx, operation, err)
		opLogger.Error(err)
		return nil, err
	}

	// Update operation status to processing
	operation.Status = model.OperationStatusProcessing
	if err := os.operationRepo.UpdateStatus(ctx, operation.ID, operation.Status); err != nil {
		os.logger.Error("Failed to update operation status", zap.Error(err))
	}

	// Execute operation with timeout
	timeout := os.getOperationTimeout(req.OperationType)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	result, err := driverInstance.ExecuteOperation(execCtx, operation)
	duration := time.Since(startTime)

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			os.updateOperationTimeout(ctx, operation, err)
		} else {
			os.updateOperationError(ctx, operation, err)
		}
		opLogger.Error(err)
		return nil, fmt.Errorf("operation execution failed: %w", err)
	}

	// Update operation as completed
	completedAt := time.Now()
	durationMs := int(duration.Milliseconds())
	operation.Status = model.OperationStatusSuccess
	operation.CompletedAt = &completedAt
	operation.DurationMs = &durationMs
	operation.Result = model.JSONObject(result.Data)

	if err := os.operationRepo.Update(ctx, operation); err != nil {
		os.logger.Error("Failed to update operation", zap.Error(err))
	}

	opLogger.Success(
		zap.Duration("duration", duration),
		zap.Any("result", result.Data),
	)

	os.recordSideEffects(ctx, controller, req, result.Data)

	return &OperationResponse{
		OperationID: operation.ID,
		Success:     true,
		Result:      result.Data,
		Duration:    result.Duration,
	}, nil
}

// ReadChannel reads the current temperature of a channel
func (os *OperationService) ReadChannel(ctx context.Context, controllerID uuid.UUID, channel string) (float64, *OperationResponse, error) {
	resp, err := os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": channel},
	})
	if err != nil {
		return 0, nil, err
	}

	value, err := floatFromResult(resp.Result, "value")
	if err != nil {
		return 0, resp, err
	}
	return value, resp, nil
}

// ReadSetpoint reads the PID setpoint of a channel
func (os *OperationService) ReadSetpoint(ctx context.Context, controllerID uuid.UUID, channel string) (float64, *OperationResponse, error) {
	resp, err := os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeReadSetpoint,
		Data:          map[string]interface{}{"channel": channel},
	})
	if err != nil {
		return 0, nil, err
	}

	value, err := floatFromResult(resp.Result, "setpoint")
	if err != nil {
		return 0, resp, err
	}
	return value, resp, nil
}

// WriteSetpoint writes the PID setpoint of a channel
func (os *OperationService) WriteSetpoint(ctx context.Context, controllerID uuid.UUID, channel string, setpoint decimal.Decimal, userID string) (*OperationResponse, error) {
	resp, err := os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeWriteSetpoint,
		Data: map[string]interface{}{
			"channel":  channel,
			"setpoint": setpoint.InexactFloat64(),
		},
	})
	if err != nil {
		return nil, err
	}

	os.auditLogger.LogSetpointChange(controllerID.String(), channel, setpoint.InexactFloat64(), userID)
	return resp, nil
}

// SetHeater enables or disables the heater output
func (os *OperationService) SetHeater(ctx context.Context, controllerID uuid.UUID, enabled bool, userID string) (*OperationResponse, error) {
	opType := model.OperationTypeHeaterEnable
	if !enabled {
		opType = model.OperationTypeHeaterDisable
	}

	resp, err := os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: opType,
		Data:          map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}

	os.auditLogger.LogHeaterToggle(controllerID.String(), enabled, userID)
	return resp, nil
}

// SetPID enables or disables the PID feedback loop for a channel
func (os *OperationService) SetPID(ctx context.Context, controllerID uuid.UUID, channel string, enabled bool) (*OperationResponse, error) {
	opType := model.OperationTypePIDEnable
	if !enabled {
		opType = model.OperationTypePIDDisable
	}

	return os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: opType,
		Data:          map[string]interface{}{"channel": channel},
	})
}

// TunePID runs a PID autotune cycle on a channel
func (os *OperationService) TunePID(ctx context.Context, controllerID uuid.UUID, channel string, stepPower decimal.Decimal, lagSeconds int) (*OperationResponse, error) {
	return os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypePIDTune,
		Data: map[string]interface{}{
			"channel":     channel,
			"step_power":  stepPower.InexactFloat64(),
			"lag_seconds": lagSeconds,
		},
	})
}

// SetAlarm configures a temperature window alarm on a channel
func (os *OperationService) SetAlarm(ctx context.Context, controllerID uuid.UUID, channel string, minTemp, maxTemp decimal.Decimal) (*OperationResponse, error) {
	return os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeAlarmSet,
		Data: map[string]interface{}{
			"channel":  channel,
			"min_temp": minTemp.InexactFloat64(),
			"max_temp": maxTemp.InexactFloat64(),
		},
	})
}

// ClearAlarm disables the alarm on a channel
func (os *OperationService) ClearAlarm(ctx context.Context, controllerID uuid.UUID, channel string) (*OperationResponse, error) {
	return os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeAlarmClear,
		Data:          map[string]interface{}{"channel": channel},
	})
}

// CheckStatus queries the controller status
func (os *OperationService) CheckStatus(ctx context.Context, controllerID uuid.UUID) (*OperationResponse, error) {
	return os.ExecuteOperation(ctx, &OperationRequest{
		ControllerID:  controllerID,
		OperationType: model.OperationTypeStatusCheck,
		Data:          map[string]interface{}{},
	})
}

// ListReadings returns stored readings for a controller channel
func (os *OperationService) ListReadings(ctx context.Context, controllerID uuid.UUID, channel string, since time.Time, limit int) ([]*model.Reading, error) {
	readings, err := os.readingRepo.ListByChannel(ctx, controllerID, channel, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// LatestReading returns the most recent stored reading for a controller channel
func (os *OperationService) LatestReading(ctx context.Context, controllerID uuid.UUID, channel string) (*model.Reading, error) {
	return os.readingRepo.Latest(ctx, controllerID, channel)
}

// GetOperation retrieves operation details
func (os *OperationService) GetOperation(ctx context.Context, operationID uuid.UUID) (*model.ControlOperation, error) {
	operation, err := os.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("operation not found: %w", err)
	}
	return operation, nil
}

// ListOperations lists operations with filtering
func (os *OperationService) ListOperations(ctx context.Context, filter *OperationFilter) ([]*model.ControlOperation, *PaginationResult, error) {
	operations, total, err := os.operationRepo.List(ctx, filter.toRepoFilter())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list operations: %w", err)
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

	return operations, pagination, nil
}

// CancelOperation cancels a pending operation
func (os *OperationService) CancelOperation(ctx context.Context, operationID uuid.UUID, reason string) error {
	operation, err := os.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return fmt.Errorf("operation not found: %w", err)
	}

	if operation.Status != model.OperationStatusPending && operation.Status != model.OperationStatusProcessing {
		return fmt.Errorf("cannot cancel operation in status: %s", operation.Status)
	}

	completedAt := time.Now()
	operation.Status = model.OperationStatusCancelled
	operation.CompletedAt = &completedAt
	operation.ErrorMessage = &reason

	if err := os.operationRepo.Update(ctx, operation); err != nil {
		return fmt.Errorf("failed to cancel operation: %w", err)
	}

	os.logger.Info("Operation cancelled",
		zap.String("operation_id", operationID.String()),
		zap.String("reason", reason),
	)

	return nil
}

// GetOperationStats retrieves aggregate operation statistics
func (os *OperationService) GetOperationStats(ctx context.Context, filter *repository.OperationStatsFilter) (*repository.OperationStats, error) {
	stats, err := os.operationRepo.GetOperationStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation stats: %w", err)
	}
	return stats, nil
}

// Helper methods

// recordSideEffects persists byproducts of successful operations, currently
// the sampled temperature of read operations
func (os *OperationService) recordSideEffects(ctx context.Context, controller *model.Controller, req *OperationRequest, result map[string]interface{}) {
	if req.OperationType != model.OperationTypeReadChannel {
		return
	}

	value, err := floatFromResult(result, "value")
	if err != nil {
		return
	}

	channel, _ := req.Data["channel"].(string)
	reading := &model.Reading{
		ID:           uuid.New(),
		ControllerID: controller.ID,
		Channel:      channel,
		Value:        value,
		Unit:         model.UnitKelvin,
		TakenAt:      time.Now(),
	}

	if err := os.readingRepo.Create(ctx, reading); err != nil {
		os.logger.Warn("Failed to persist reading", zap.Error(err))
	}
}

// updateOperationError updates operation with error
func (os *OperationService) updateOperationError(ctx context.Context, operation *model.ControlOperation, err error) {
	os.finalizeOperation(ctx, operation, model.OperationStatusFailed, err)
}

// updateOperationTimeout marks an operation as timed out
func (os *OperationService) updateOperationTimeout(ctx context.Context, operation *model.ControlOperation, err error) {
	os.finalizeOperation(ctx, operation, model.OperationStatusTimeout, err)
}

func (os *OperationService) finalizeOperation(ctx context.Context, operation *model.ControlOperation, status model.OperationStatus, err error) {
	completedAt := time.Now()
	durationMs := int(completedAt.Sub(operation.StartedAt).Milliseconds())
	operation.Status = status
	operation.CompletedAt = &completedAt
	operation.DurationMs = &durationMs
	errorMsg := err.Error()
	operation.ErrorMessage = &errorMsg

	if updateErr := os.operationRepo.Update(ctx, operation); updateErr != nil {
		os.logger.Error("Failed to update operation error", zap.Error(updateErr))
	}
}

// getOperationTimeout returns timeout for operation type
func (os *OperationService) getOperationTimeout(operationType model.OperationType) time.Duration {
	switch operationType {
	case model.OperationTypePIDTune:
		// Autotune holds the heater on for the full lag window
		return os.config.Controller.TuneTimeout
	case model.OperationTypeAlarmSet:
		// Four commands on the wire
		return 4 * os.config.Controller.CommandTimeout
	default:
		return os.config.Controller.CommandTimeout + time.Second
	}
}

// operationPriority returns the default priority for an operation type
func operationPriority(operationType model.OperationType) model.OperationPriority {
	switch operationType {
	case model.OperationTypeHeaterDisable, model.OperationTypeAlarmSet, model.OperationTypeAlarmClear:
		return model.PriorityCritical
	case model.OperationTypeWriteSetpoint, model.OperationTypeHeaterEnable,
		model.OperationTypePIDEnable, model.OperationTypePIDDisable:
		return model.PriorityHigh
	case model.OperationTypePIDTune:
		return model.PriorityBackground
	default:
		return model.PriorityNormal
	}
}

// floatFromResult extracts a float value from an operation result map
func floatFromResult(result map[string]interface{}, key string) (float64, error) {
	raw, ok := result[key]
	if !ok {
		return 0, fmt.Errorf("operation result missing %q", key)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("operation result %q has unexpected type %T", key, raw)
	}
}

// DTOs for Operation Service

// OperationRequest represents operation execution request
type OperationRequest struct {
	ControllerID  uuid.UUID               `json:"controller_id"`
	OperationType model.OperationType     `json:"operation_type"`
	Data          map[string]interface{}  `json:"data"`
	Priority      model.OperationPriority `json:"priority"`
	CorrelationID *uuid.UUID              `json:"correlation_id,omitempty"`
}

// OperationResponse represents operation execution response
type OperationResponse struct {
	OperationID  uuid.UUID              `json:"operation_id"`
	Success      bool                   `json:"success"`
	Result       map[string]interface{} `json:"result,omitempty"`
	Duration     string                 `json:"duration"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// OperationFilter represents operation listing filters
type OperationFilter struct {
	ControllerID  *uuid.UUID               `json:"controller_id,omitempty"`
	OperationType *model.OperationType     `json:"operation_type,omitempty"`
	Status        *model.OperationStatus   `json:"status,omitempty"`
	Priority      *model.OperationPriority `json:"priority,omitempty"`
	CorrelationID *uuid.UUID               `json:"correlation_id,omitempty"`
	StartDate     *time.Time               `json:"start_date,omitempty"`
	EndDate       *time.Time               `json:"end_date,omitempty"`
	Page          int                      `json:"page"`
	PerPage       int                      `json:"per_page"`
	SortBy        string                   `json:"sort_by"`
	SortOrder     string                   `json:"sort_order"`
}

// toRepoFilter converts to repository filter
func (of *OperationFilter) toRepoFilter() *repository.OperationFilter {
	return &repository.OperationFilter{
		ControllerID:  of.ControllerID,
		OperationType: of.OperationType,
		Status:        of.Status,
		Priority:      of.Priority,
		CorrelationID: of.CorrelationID,
		StartDate:     of.StartDate,
		EndDate:       of.EndDate,
		Page:          of.Page,
		PerPage:       of.PerPage,
		SortBy:        of.SortBy,
		SortOrder:     of.SortOrder,
	}
}
