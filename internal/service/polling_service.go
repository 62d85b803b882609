// internal/service/polling_service.go
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/utils"
)

// PollingService periodically samples every channel of every connected
// controller and stores the readings for trend history
type PollingService struct {
	controllerRepo repository.ControllerRepository
	readingRepo    repository.ReadingRepository
	driverPool     *DriverPool
	config         *config.Config
	logger         *utils.ServiceLogger
	stopCh         chan struct{}
}

// NewPollingService creates a new polling service instance
func NewPollingService(
	controllerRepo repository.ControllerRepository,
	readingRepo repository.ReadingRepository,
	driverPool *DriverPool,
	config *config.Config,
	logger *zap.Logger,
) *PollingService {
	return &PollingService{
		controllerRepo: controllerRepo,
		readingRepo:    readingRepo,
		driverPool:     driverPool,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "polling-service"),
		stopCh:         make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called
func (ps *PollingService) Start() {
	if !ps.config.Polling.Enabled {
		ps.logger.Info("Temperature polling disabled")
		return
	}

	ps.logger.Info("Temperature polling started",
		zap.Duration("interval", ps.config.Polling.Interval),
	)

	ticker := time.NewTicker(ps.config.Polling.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ps.pollOnce()
		case <-ps.stopCh:
			ps.logger.Info("Temperature polling stopped")
			return
		}
	}
}

// Stop terminates the polling loop
func (ps *PollingService) Stop() {
	close(ps.stopCh)
}

// pollOnce samples every channel of every pooled controller
func (ps *PollingService) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), ps.config.Polling.Interval)
	defer cancel()

	for _, id := range ps.driverPool.ConnectedIDs() {
		ps.pollController(ctx, id)
	}
}

// pollController samples all configured channels of one controller
func (ps *PollingService) pollController(ctx context.Context, id uuid.UUID) {
	driverInstance, ok := ps.driverPool.Get(id)
	if !ok {
		return
	}

	controller, err := ps.controllerRepo.GetByID(ctx, id)
	if err != nil {
		ps.logger.Warn("Failed to load controller for polling", zap.Error(err))
		return
	}

	for index, channel := range controller.ChannelNames() {
		readCtx, cancel := context.WithTimeout(ctx, ps.config.Controller.CommandTimeout+time.Second)
		value, err := driverInstance.ReadChannel(readCtx, index+1)
		cancel()

		if err != nil {
			ps.logger.Warn("Channel poll failed",
				zap.String("controller_id", controller.ControllerID),
				zap.String("channel", channel),
				zap.Error(err),
			)
			continue
		}

		reading := &model.Reading{
			ID:           uuid.New(),
			ControllerID: controller.ID,
			Channel:      channel,
			Value:        value,
			Unit:         model.UnitKelvin,
			TakenAt:      time.Now(),
		}

		if err := ps.readingRepo.Create(ctx, reading); err != nil {
			ps.logger.Warn("Failed to persist polled reading", zap.Error(err))
		}
	}
}

// RunRetentionCleanup removes readings older than the retention window
func (ps *PollingService) RunRetentionCleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -ps.config.Polling.RetentionDays)

	deleted, err := ps.readingRepo.DeleteOldReadings(ctx, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		ps.logger.Info("Reading retention cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
