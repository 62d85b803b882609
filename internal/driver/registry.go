// internal/driver/registry.go
package driver

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/pkg/driver"
)

// DriverFactory creates controller drivers
type DriverFactory func(controller *model.Controller, connectionConfig interface{}, logger *zap.Logger) (driver.ControllerDriver, error)

// Registry manages controller driver registration and creation
type Registry struct {
	drivers map[DriverKey]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// DriverKey uniquely identifies a driver
type DriverKey struct {
	Brand model.ControllerBrand
	Model string
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[DriverKey]DriverFactory),
		logger:  logger,
	}
}

// Register registers a driver factory
func (r *Registry) Register(brand model.ControllerBrand, model string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := DriverKey{
		Brand: brand,
		Model: model,
	}

	r.drivers[key] = factory
	r.logger.Info("Driver registered",
		zap.String("brand", string(brand)),
		zap.String("model", model),
	)
}

// CreateDriver creates a driver instance
func (r *Registry) CreateDriver(controller *model.Controller, connectionConfig interface{}) (driver.ControllerDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Try exact match first
	key := DriverKey{
		Brand: controller.Brand,
		Model: controller.Model,
	}

	if factory, exists := r.drivers[key]; exists {
		return factory(controller, connectionConfig, r.logger)
	}

	// Try brand match (any model)
	key.Model = "*"
	if factory, exists := r.drivers[key]; exists {
		return factory(controller, connectionConfig, r.logger)
	}

	// Try generic driver
	key.Brand = model.BrandGeneric
	if factory, exists := r.drivers[key]; exists {
		return factory(controller, connectionConfig, r.logger)
	}

	return nil, fmt.Errorf("no driver found for brand=%s, model=%s",
		controller.Brand, controller.Model)
}

// ListDrivers returns all registered drivers
func (r *Registry) ListDrivers() []DriverKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]DriverKey, 0, len(r.drivers))
	for key := range r.drivers {
		keys = append(keys, key)
	}
	return keys
}

// IsSupported checks if a controller is supported
func (r *Registry) IsSupported(brand model.ControllerBrand, controllerModel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Check exact match
	key := DriverKey{Brand: brand, Model: controllerModel}
	if _, exists := r.drivers[key]; exists {
		return true
	}

	// Check wildcard match
	key.Model = "*"
	if _, exists := r.drivers[key]; exists {
		return true
	}

	// Check generic driver
	key.Brand = model.BrandGeneric
	if _, exists := r.drivers[key]; exists {
		return true
	}

	return false
}

// GetSupportedBrands returns all supported brands
func (r *Registry) GetSupportedBrands() []model.ControllerBrand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brandSet := make(map[model.ControllerBrand]bool)
	for key := range r.drivers {
		brandSet[key.Brand] = true
	}

	brands := make([]model.ControllerBrand, 0, len(brandSet))
	for brand := range brandSet {
		brands = append(brands, brand)
	}
	return brands
}
