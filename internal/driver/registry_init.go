// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"tempctl-service/internal/driver/ctc100"
	"tempctl-service/internal/driver/lakeshore"
	"tempctl-service/internal/model"
)

// RegisterDefaultDrivers registers all default controller drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerSRSDrivers(registry, logger)
	registerLakeshoreDrivers(registry, logger)
}

// registerSRSDrivers registers Stanford Research Systems drivers
func registerSRSDrivers(registry *Registry, logger *zap.Logger) {
	// SRS CTC100 cryogenic temperature controller
	registry.Register(
		model.BrandSRS,
		"CTC100",
		ctc100.NewCTC100Driver,
	)

	// Generic SRS controller (wildcard); the CTC100 command set is the only
	// one SRS ships for this product line
	registry.Register(
		model.BrandSRS,
		"*",
		ctc100.NewCTC100Driver,
	)

	logger.Info("SRS controller drivers registered",
		zap.Int("models", 2),
	)
}

// registerLakeshoreDrivers registers Lake Shore drivers
func registerLakeshoreDrivers(registry *Registry, logger *zap.Logger) {
	// Lake Shore 332
	registry.Register(
		model.BrandLakeshore,
		"332",
		lakeshore.NewLakeshoreDriver,
	)

	// Lake Shore 331 shares the 332 command set
	registry.Register(
		model.BrandLakeshore,
		"331",
		lakeshore.NewLakeshoreDriver,
	)

	// Generic Lake Shore controller (wildcard)
	registry.Register(
		model.BrandLakeshore,
		"*",
		lakeshore.NewLakeshoreDriver,
	)

	logger.Info("Lake Shore controller drivers registered",
		zap.Int("models", 3),
	)
}
