// internal/service/operation_service_test.go
package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/pkg/driver"
)

// In-memory repository fakes

type fakeControllerRepo struct {
	mu          sync.Mutex
	controllers map[uuid.UUID]*model.Controller
}

func newFakeControllerRepo() *fakeControllerRepo {
	return &fakeControllerRepo{controllers: make(map[uuid.UUID]*model.Controller)}
}

func (r *fakeControllerRepo) Create(ctx context.Context, controller *model.Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[controller.ID] = controller
	return nil
}

func (r *fakeControllerRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	controller, ok := r.controllers[id]
	if !ok {
		return nil, fmt.Errorf("controller not found")
	}
	return controller, nil
}

func (r *fakeControllerRepo) GetByControllerID(ctx context.Context, controllerID string) (*model.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, controller := range r.controllers {
		if controller.ControllerID == controllerID {
			return controller, nil
		}
	}
	return nil, fmt.Errorf("controller not found")
}

func (r *fakeControllerRepo) Update(ctx context.Context, controller *model.Controller) error {
	return r.Create(ctx, controller)
}

func (r *fakeControllerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ControllerStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if controller, ok := r.controllers[id]; ok {
		controller.Status = status
	}
	return nil
}

func (r *fakeControllerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, id)
	return nil
}

func (r *fakeControllerRepo) List(ctx context.Context, filter *repository.ControllerFilter) ([]*model.Controller, int, error) {
	return nil, 0, nil
}

func (r *fakeControllerRepo) ListByStatus(ctx context.Context, status model.ControllerStatus) ([]*model.Controller, error) {
	return nil, nil
}

func (r *fakeControllerRepo) UpdateLastPing(ctx context.Context, id uuid.UUID, pingTime time.Time) error {
	return nil
}

func (r *fakeControllerRepo) GetStats(ctx context.Context) (*repository.ControllerStats, error) {
	return &repository.ControllerStats{}, nil
}

type fakeOperationRepo struct {
	mu         sync.Mutex
	operations map[uuid.UUID]*model.ControlOperation
}

func newFakeOperationRepo() *fakeOperationRepo {
	return &fakeOperationRepo{operations: make(map[uuid.UUID]*model.ControlOperation)}
}

func (r *fakeOperationRepo) Create(ctx context.Context, operation *model.ControlOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *operation
	r.operations[operation.ID] = &copied
	return nil
}

func (r *fakeOperationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ControlOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	operation, ok := r.operations[id]
	if !ok {
		return nil, fmt.Errorf("operation not found")
	}
	copied := *operation
	return &copied, nil
}

func (r *fakeOperationRepo) Update(ctx context.Context, operation *model.ControlOperation) error {
	return r.Create(ctx, operation)
}

func (r *fakeOperationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OperationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if operation, ok := r.operations[id]; ok {
		operation.Status = status
	}
	return nil
}

func (r *fakeOperationRepo) List(ctx context.Context, filter *repository.OperationFilter) ([]*model.ControlOperation, int, error) {
	return nil, 0, nil
}

func (r *fakeOperationRepo) ListByController(ctx context.Context, controllerID uuid.UUID, limit int) ([]*model.ControlOperation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) ListPending(ctx context.Context, priority *model.OperationPriority) ([]*model.ControlOperation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) GetOperationStats(ctx context.Context, filter *repository.OperationStatsFilter) (*repository.OperationStats, error) {
	return &repository.OperationStats{}, nil
}

func (r *fakeOperationRepo) DeleteOldOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOperationRepo) stored(id uuid.UUID) *model.ControlOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operations[id]
}

type fakeReadingRepo struct {
	mu       sync.Mutex
	readings []*model.Reading
}

func (r *fakeReadingRepo) Create(ctx context.Context, reading *model.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
	return nil
}

func (r *fakeReadingRepo) ListByChannel(ctx context.Context, controllerID uuid.UUID, channel string, since time.Time, limit int) ([]*model.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Reading
	for _, reading := range r.readings {
		if reading.ControllerID == controllerID && reading.Channel == channel {
			out = append(out, reading)
		}
	}
	return out, nil
}

func (r *fakeReadingRepo) Latest(ctx context.Context, controllerID uuid.UUID, channel string) (*model.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.readings) - 1; i >= 0; i-- {
		if r.readings[i].ControllerID == controllerID && r.readings[i].Channel == channel {
			return r.readings[i], nil
		}
	}
	return nil, fmt.Errorf("no readings")
}

func (r *fakeReadingRepo) DeleteOldReadings(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// fakeDriver answers ExecuteOperation from a scripted result
type fakeDriver struct {
	result   *driver.OperationResult
	err      error
	executed []*model.ControlOperation
}

func (d *fakeDriver) Connect(ctx context.Context) error    { return nil }
func (d *fakeDriver) Disconnect(ctx context.Context) error { return nil }
func (d *fakeDriver) IsConnected() bool                    { return true }

func (d *fakeDriver) GetControllerInfo() (*driver.ControllerInfo, error) {
	return &driver.ControllerInfo{}, nil
}
func (d *fakeDriver) GetCapabilities() []model.Capability { return nil }
func (d *fakeDriver) GetStatus() (*driver.ControllerStatus, error) {
	return &driver.ControllerStatus{}, nil
}

func (d *fakeDriver) ReadChannel(ctx context.Context, channel int) (float64, error)  { return 0, nil }
func (d *fakeDriver) ReadSetpoint(ctx context.Context, channel int) (float64, error) { return 0, nil }
func (d *fakeDriver) WriteSetpoint(ctx context.Context, channel int, setpoint float64) error {
	return nil
}

func (d *fakeDriver) EnableHeater(ctx context.Context) error               { return nil }
func (d *fakeDriver) DisableHeater(ctx context.Context) error              { return nil }
func (d *fakeDriver) EnablePID(ctx context.Context, channel int) error     { return nil }
func (d *fakeDriver) DisablePID(ctx context.Context, channel int) error    { return nil }
func (d *fakeDriver) TunePID(ctx context.Context, channel int, params *driver.TuneParams) (string, error) {
	return "", nil
}
func (d *fakeDriver) SetAlarm(ctx context.Context, channel int, minTemp, maxTemp float64) error {
	return nil
}
func (d *fakeDriver) ClearAlarm(ctx context.Context, channel int) error { return nil }

func (d *fakeDriver) ExecuteOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	d.executed = append(d.executed, operation)
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func (d *fakeDriver) Ping(ctx context.Context) error { return nil }
func (d *fakeDriver) GetHealthMetrics() (*driver.HealthMetrics, error) {
	return &driver.HealthMetrics{}, nil
}
func (d *fakeDriver) SetEventHandler(handler driver.EventHandler) {}
func (d *fakeDriver) Close() error                                { return nil }

// Fixture

type operationFixture struct {
	service       *OperationService
	controller    *model.Controller
	driver        *fakeDriver
	operationRepo *fakeOperationRepo
	readingRepo   *fakeReadingRepo
}

func newOperationFixture(t *testing.T) *operationFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Controller.CommandTimeout = 2 * time.Second
	cfg.Controller.TuneTimeout = 10 * time.Minute

	controllerRepo := newFakeControllerRepo()
	operationRepo := newFakeOperationRepo()
	readingRepo := &fakeReadingRepo{}
	pool := NewDriverPool(zap.NewNop())

	controller := &model.Controller{
		ID:           uuid.New(),
		ControllerID: "TC-LAB-1",
		Brand:        model.BrandSRS,
		Model:        "CTC100",
		Status:       model.ControllerStatusOnline,
		Channels:     model.JSONArray{"1", "2", "3", "4"},
	}
	require.NoError(t, controllerRepo.Create(context.Background(), controller))

	fake := &fakeDriver{}
	pool.Store(controller.ID, fake)

	svc := NewOperationService(operationRepo, controllerRepo, readingRepo, pool, cfg, zap.NewNop())

	return &operationFixture{
		service:       svc,
		controller:    controller,
		driver:        fake,
		operationRepo: operationRepo,
		readingRepo:   readingRepo,
	}
}

func TestExecuteOperationSuccess(t *testing.T) {
	fx := newOperationFixture(t)
	fx.driver.result = &driver.OperationResult{
		Success:  true,
		Data:     map[string]interface{}{"channel": "In1", "value": 301.221, "unit": "K"},
		Duration: "12ms",
	}

	resp, err := fx.service.ExecuteOperation(context.Background(), &OperationRequest{
		ControllerID:  fx.controller.ID,
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": "1"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.InDelta(t, 301.221, resp.Result["value"].(float64), 1e-9)

	stored := fx.operationRepo.stored(resp.OperationID)
	require.NotNil(t, stored)
	assert.Equal(t, model.OperationStatusSuccess, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotNil(t, stored.DurationMs)
}

func TestExecuteOperationPersistsReading(t *testing.T) {
	fx := newOperationFixture(t)
	fx.driver.result = &driver.OperationResult{
		Success: true,
		Data:    map[string]interface{}{"channel": "In2", "value": 77.35, "unit": "K"},
	}

	value, _, err := fx.service.ReadChannel(context.Background(), fx.controller.ID, "2")
	require.NoError(t, err)
	assert.InDelta(t, 77.35, value, 1e-9)

	require.Len(t, fx.readingRepo.readings, 1)
	reading := fx.readingRepo.readings[0]
	assert.Equal(t, fx.controller.ID, reading.ControllerID)
	assert.Equal(t, "2", reading.Channel)
	assert.InDelta(t, 77.35, reading.Value, 1e-9)
	assert.Equal(t, model.UnitKelvin, reading.Unit)
}

func TestExecuteOperationDriverFailure(t *testing.T) {
	fx := newOperationFixture(t)
	fx.driver.err = &driver.ParseError{Command: "In1.value?", Reply: "FAULT", Want: "numeric value"}

	resp, err := fx.service.ExecuteOperation(context.Background(), &OperationRequest{
		ControllerID:  fx.controller.ID,
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": "1"},
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, driver.IsParseError(err))

	// The stored operation carries the failure
	var stored *model.ControlOperation
	for _, op := range fx.operationRepo.operations {
		stored = op
	}
	require.NotNil(t, stored)
	assert.Equal(t, model.OperationStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "FAULT")
}

func TestExecuteOperationControllerOffline(t *testing.T) {
	fx := newOperationFixture(t)
	fx.controller.Status = model.ControllerStatusOffline

	_, err := fx.service.ExecuteOperation(context.Background(), &OperationRequest{
		ControllerID:  fx.controller.ID,
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": "1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not online")
	assert.Empty(t, fx.driver.executed)
}

func TestExecuteOperationNoPooledDriver(t *testing.T) {
	fx := newOperationFixture(t)
	fx.service.driverPool.Remove(fx.controller.ID)

	_, err := fx.service.ExecuteOperation(context.Background(), &OperationRequest{
		ControllerID:  fx.controller.ID,
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": "1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active connection")
}

func TestExecuteOperationUnknownController(t *testing.T) {
	fx := newOperationFixture(t)

	_, err := fx.service.ExecuteOperation(context.Background(), &OperationRequest{
		ControllerID:  uuid.New(),
		OperationType: model.OperationTypeReadChannel,
		Data:          map[string]interface{}{"channel": "1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller not found")
}

func TestWriteSetpointBuildsOperationData(t *testing.T) {
	fx := newOperationFixture(t)
	fx.driver.result = &driver.OperationResult{
		Success: true,
		Data:    map[string]interface{}{"channel": 1, "setpoint": 145.0, "unit": "K"},
	}

	_, err := fx.service.WriteSetpoint(context.Background(), fx.controller.ID, "1", decimal.NewFromInt(145), "operator-1")
	require.NoError(t, err)

	require.Len(t, fx.driver.executed, 1)
	executed := fx.driver.executed[0]
	assert.Equal(t, model.OperationTypeWriteSetpoint, executed.OperationType)
	assert.Equal(t, "1", executed.OperationData["channel"])
	assert.InDelta(t, 145.0, executed.OperationData["setpoint"].(float64), 1e-9)
	assert.Equal(t, model.PriorityHigh, executed.Priority)
}

func TestTunePIDBuildsOperationData(t *testing.T) {
	fx := newOperationFixture(t)
	fx.driver.result = &driver.OperationResult{
		Success: true,
		Data:    map[string]interface{}{"channel": 1, "tuned": true},
	}

	_, err := fx.service.TunePID(context.Background(), fx.controller.ID, "1", decimal.NewFromFloat(0.5), 120)
	require.NoError(t, err)

	require.Len(t, fx.driver.executed, 1)
	executed := fx.driver.executed[0]
	assert.Equal(t, model.OperationTypePIDTune, executed.OperationType)
	assert.InDelta(t, 0.5, executed.OperationData["step_power"].(float64), 1e-9)
	assert.Equal(t, 120, executed.OperationData["lag_seconds"])
	assert.Equal(t, model.PriorityBackground, executed.Priority)
}

func TestOperationPriorityDefaults(t *testing.T) {
	assert.Equal(t, model.PriorityCritical, operationPriority(model.OperationTypeHeaterDisable))
	assert.Equal(t, model.PriorityCritical, operationPriority(model.OperationTypeAlarmSet))
	assert.Equal(t, model.PriorityHigh, operationPriority(model.OperationTypeWriteSetpoint))
	assert.Equal(t, model.PriorityHigh, operationPriority(model.OperationTypeHeaterEnable))
	assert.Equal(t, model.PriorityBackground, operationPriority(model.OperationTypePIDTune))
	assert.Equal(t, model.PriorityNormal, operationPriority(model.OperationTypeReadChannel))
	assert.Equal(t, model.PriorityNormal, operationPriority(model.OperationTypeStatusCheck))
}

func TestCancelOperation(t *testing.T) {
	fx := newOperationFixture(t)

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		ControllerID:  fx.controller.ID,
		OperationType: model.OperationTypePIDTune,
		Status:        model.OperationStatusPending,
		StartedAt:     time.Now(),
	}
	require.NoError(t, fx.operationRepo.Create(context.Background(), operation))

	err := fx.service.CancelOperation(context.Background(), operation.ID, "operator abort")
	require.NoError(t, err)

	stored := fx.operationRepo.stored(operation.ID)
	assert.Equal(t, model.OperationStatusCancelled, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "operator abort", *stored.ErrorMessage)

	// Terminal operations cannot be cancelled again
	err = fx.service.CancelOperation(context.Background(), operation.ID, "again")
	assert.Error(t, err)
}

func TestFloatFromResult(t *testing.T) {
	value, err := floatFromResult(map[string]interface{}{"value": 301.221}, "value")
	require.NoError(t, err)
	assert.InDelta(t, 301.221, value, 1e-9)

	value, err = floatFromResult(map[string]interface{}{"value": 42}, "value")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, value, 1e-9)

	_, err = floatFromResult(map[string]interface{}{}, "value")
	assert.Error(t, err)

	_, err = floatFromResult(map[string]interface{}{"value": "301.221"}, "value")
	assert.Error(t, err)
}
