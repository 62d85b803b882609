// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
)

// ControllerScanner is implemented by every transport-specific scanner
type ControllerScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredController, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredController represents an instrument found during a scan
type DiscoveredController struct {
	ConnectionType model.ConnectionType   `json:"connection_type"`
	ConnectionInfo map[string]interface{} `json:"connection_info"`
	Brand          model.ControllerBrand  `json:"brand"`
	Model          string                 `json:"model"`
	Description    string                 `json:"description,omitempty"`
	Confidence     float64                `json:"confidence"` // 0.0-1.0
	SerialNumber   string                 `json:"serial_number,omitempty"`
}

// ScannerManager fans scan requests out to the registered scanners
type ScannerManager struct {
	scanners map[string]ControllerScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]ControllerScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a controller scanner
func (sm *ScannerManager) RegisterScanner(scanner ControllerScanner) {
	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner and merges the results
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredController, error) {
	var allControllers []*DiscoveredController

	for scannerType, scanner := range sm.scanners {
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		controllers, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allControllers = append(allControllers, controllers...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("controllers_found", len(controllers)),
		)
	}

	return allControllers, nil
}

// ScanByType runs a specific scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredController, error) {
	scanner, exists := sm.scanners[scannerType]
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}
