// internal/service/driver_pool.go
package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempctl-service/pkg/driver"
)

// DriverPool holds the live driver instance for each connected controller.
// Serial and telnet links are exclusive, so exactly one driver per
// controller exists at a time and every service goes through the pool to
// reach it. The drivers themselves serialize commands on the wire.
type DriverPool struct {
	drivers map[uuid.UUID]driver.ControllerDriver
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewDriverPool creates an empty driver pool
func NewDriverPool(logger *zap.Logger) *DriverPool {
	return &DriverPool{
		drivers: make(map[uuid.UUID]driver.ControllerDriver),
		logger:  logger,
	}
}

// Get returns the pooled driver for a controller, if one is connected
func (p *DriverPool) Get(controllerID uuid.UUID) (driver.ControllerDriver, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	d, ok := p.drivers[controllerID]
	return d, ok
}

// Store registers a driver for a controller, closing any previous instance
func (p *DriverPool) Store(controllerID uuid.UUID, d driver.ControllerDriver) {
	p.mu.Lock()
	previous := p.drivers[controllerID]
	p.drivers[controllerID] = d
	p.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			p.logger.Warn("Failed to close replaced driver",
				zap.String("controller_id", controllerID.String()),
				zap.Error(err),
			)
		}
	}
}

// Remove removes and closes the driver for a controller
func (p *DriverPool) Remove(controllerID uuid.UUID) {
	p.mu.Lock()
	d := p.drivers[controllerID]
	delete(p.drivers, controllerID)
	p.mu.Unlock()

	if d != nil {
		if err := d.Close(); err != nil {
			p.logger.Warn("Failed to close driver",
				zap.String("controller_id", controllerID.String()),
				zap.Error(err),
			)
		}
	}
}

// ConnectedIDs returns the IDs of all controllers with a pooled driver
func (p *DriverPool) ConnectedIDs() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(p.drivers))
	for id := range p.drivers {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of pooled drivers
func (p *DriverPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.drivers)
}

// CloseAll disconnects and closes every pooled driver
func (p *DriverPool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	drivers := p.drivers
	p.drivers = make(map[uuid.UUID]driver.ControllerDriver)
	p.mu.Unlock()

	for id, d := range drivers {
		if err := d.Disconnect(ctx); err != nil {
			p.logger.Warn("Failed to disconnect driver during shutdown",
				zap.String("controller_id", id.String()),
				zap.Error(err),
			)
		}
		if err := d.Close(); err != nil {
			p.logger.Warn("Failed to close driver during shutdown",
				zap.String("controller_id", id.String()),
				zap.Error(err),
			)
		}
	}
}
