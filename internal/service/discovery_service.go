// internal/service/discovery_service.go
package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"tempctl-service/internal/config"
	"tempctl-service/internal/discovery"
	serialscan "tempctl-service/internal/discovery/serial"
	"tempctl-service/internal/discovery/tcp"
	"tempctl-service/internal/discovery/usb"
	internalDriver "tempctl-service/internal/driver"
	"tempctl-service/internal/model"
	"tempctl-service/internal/repository"
	"tempctl-service/internal/utils"
)

// DiscoveryService handles controller discovery operations
type DiscoveryService struct {
	controllerRepo    repository.ControllerRepository
	controllerService *ControllerService
	driverRegistry    *internalDriver.Registry
	scannerManager    *discovery.ScannerManager
	config            *config.Config
	logger            *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(
	controllerRepo repository.ControllerRepository,
	controllerService *ControllerService,
	driverRegistry *internalDriver.Registry,
	config *config.Config,
	logger *zap.Logger,
) *DiscoveryService {
	serviceLogger := utils.NewServiceLogger(logger, "discovery-service")

	ds := &DiscoveryService{
		controllerRepo:    controllerRepo,
		controllerService: controllerService,
		driverRegistry:    driverRegistry,
		scannerManager:    discovery.NewScannerManager(logger),
		config:            config,
		logger:            serviceLogger,
	}

	ds.initializeScanners()

	return ds
}

// initializeScanners registers all available scanners
func (ds *DiscoveryService) initializeScanners() {
	if serialScanner := serialscan.NewScanner(ds.logger.Logger, nil); serialScanner.IsAvailable() {
		ds.scannerManager.RegisterScanner(serialScanner)
	}

	if usbScanner := usb.NewScanner(ds.logger.Logger, nil); usbScanner.IsAvailable() {
		ds.scannerManager.RegisterScanner(usbScanner)
	}

	tcpScanner := tcp.NewScanner(ds.logger.Logger, &tcp.Config{
		ScanTimeout: ds.config.Controller.DiscoveryInterval,
		Hosts:       ds.config.Controller.ScanHosts,
		Port:        ds.config.Controller.DefaultPort.TCP.Port,
		ConnTimeout: ds.config.Controller.DefaultPort.TCP.ConnectTimeout,
	})
	if tcpScanner.IsAvailable() {
		ds.scannerManager.RegisterScanner(tcpScanner)
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// ScanControllers scans for reachable instruments
func (ds *DiscoveryService) ScanControllers(ctx context.Context, req *ScanRequest) ([]*DiscoveredController, error) {
	ds.logger.Info("Starting controller scan", zap.String("type", req.ScanType))

	var controllers []*discovery.DiscoveredController
	var err error

	switch req.ScanType {
	case "all", "":
		controllers, err = ds.scannerManager.ScanAll(ctx)
	case "serial", "usb", "tcp":
		controllers, err = ds.scannerManager.ScanByType(ctx, req.ScanType)
	default:
		return nil, fmt.Errorf("unsupported scan type: %s", req.ScanType)
	}

	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	result := make([]*DiscoveredController, len(controllers))
	for i, controller := range controllers {
		result[i] = &DiscoveredController{
			ConnectionType: controller.ConnectionType,
			ConnectionInfo: controller.ConnectionInfo,
			Brand:          controller.Brand,
			Model:          controller.Model,
			Description:    controller.Description,
			Confidence:     controller.Confidence,
			SerialNumber:   controller.SerialNumber,
		}
	}

	ds.logger.Info("Controller scan completed",
		zap.Int("controllers_found", len(result)),
		zap.String("scan_type", req.ScanType),
	)

	return result, nil
}

// AutoSetupControllers registers every discovered instrument that passes
// the filter, optionally connecting to each one
func (ds *DiscoveryService) AutoSetupControllers(ctx context.Context, req *AutoSetupRequest) (*AutoSetupResult, error) {
	ds.logger.Info("Starting auto-setup process")

	controllers, err := ds.ScanControllers(ctx, &ScanRequest{ScanType: "all"})
	if err != nil {
		return nil, fmt.Errorf("controller scan failed: %w", err)
	}

	result := &AutoSetupResult{
		TotalScanned:      len(controllers),
		SetupControllers:  []*SetupControllerResult{},
		Errors:            []string{},
	}

	if len(controllers) == 0 {
		ds.logger.Info("No controllers found during auto-setup scan")
		return result, nil
	}

	for i, controller := range controllers {
		controllerID := fmt.Sprintf("AUTO_%s_%s_%d", controller.Brand, controller.Model, i+1)

		setupResult := &SetupControllerResult{
			ControllerID:   controllerID,
			ConnectionType: controller.ConnectionType,
			Brand:          controller.Brand,
			Model:          controller.Model,
			Status:         "PENDING",
		}

		if !ds.shouldSetupController(controller, req.Filter) {
			ds.logger.Debug("Controller filtered out",
				zap.String("controller_id", controllerID),
				zap.String("brand", string(controller.Brand)),
			)
			continue
		}

		existing, err := ds.controllerRepo.GetByControllerID(ctx, controllerID)
		if err == nil && existing != nil {
			setupResult.Status = "ALREADY_EXISTS"
			setupResult.Error = "Controller already registered in system"
			result.SetupControllers = append(result.SetupControllers, setupResult)
			continue
		}

		regReq := &RegisterControllerRequest{
			ControllerID:     controllerID,
			Brand:            controller.Brand,
			Model:            controller.Model,
			ConnectionType:   controller.ConnectionType,
			ConnectionConfig: controller.ConnectionInfo,
			UserID:           "auto-setup",
		}

		registered, err := ds.controllerService.RegisterController(ctx, regReq)
		if err != nil {
			setupResult.Status = "FAILED"
			setupResult.Error = err.Error()
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Controller %s: %v", controllerID, err))

			ds.logger.Error("Failed to register controller during auto-setup",
				zap.String("controller_id", controllerID),
				zap.Error(err),
			)
			result.SetupControllers = append(result.SetupControllers, setupResult)
			continue
		}

		setupResult.Status = "SUCCESS"
		result.SuccessfullySetup++

		ds.logger.Info("Controller auto-setup completed",
			zap.String("controller_id", controllerID),
			zap.String("brand", string(controller.Brand)),
			zap.String("model", controller.Model),
			zap.Float64("confidence", controller.Confidence),
		)

		if req.AutoConnect {
			if err := ds.controllerService.ConnectController(ctx, registered.ControllerID); err != nil {
				ds.logger.Warn("Auto-connect failed after registration",
					zap.String("controller_id", controllerID),
					zap.Error(err),
				)
			}
		}

		result.SetupControllers = append(result.SetupControllers, setupResult)
	}

	ds.logger.Info("Auto-setup process completed",
		zap.Int("total_scanned", result.TotalScanned),
		zap.Int("successfully_setup", result.SuccessfullySetup),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// shouldSetupController checks if a discovered instrument matches the filter
func (ds *DiscoveryService) shouldSetupController(controller *DiscoveredController, filter map[string]string) bool {
	if filter == nil {
		return true
	}

	if brandFilter, exists := filter["brand"]; exists {
		if string(controller.Brand) != brandFilter {
			return false
		}
	}

	if connectionFilter, exists := filter["connection_type"]; exists {
		if string(controller.ConnectionType) != connectionFilter {
			return false
		}
	}

	if confidenceFilter, exists := filter["min_confidence"]; exists {
		if minConfidence, err := strconv.ParseFloat(confidenceFilter, 64); err == nil {
			if controller.Confidence < minConfidence {
				return false
			}
		}
	}

	return true
}

// DTOs for Discovery Service

// ScanRequest represents a controller scan request
type ScanRequest struct {
	ScanType string `json:"scan_type"` // all, serial, usb, tcp
}

// DiscoveredController represents a discovered instrument
type DiscoveredController struct {
	ConnectionType model.ConnectionType   `json:"connection_type"`
	ConnectionInfo map[string]interface{} `json:"connection_info"`
	Brand          model.ControllerBrand  `json:"brand"`
	Model          string                 `json:"model"`
	Description    string                 `json:"description,omitempty"`
	Confidence     float64                `json:"confidence"`
	SerialNumber   string                 `json:"serial_number,omitempty"`
}

// AutoSetupRequest represents auto-setup request
type AutoSetupRequest struct {
	AutoConnect bool              `json:"auto_connect"`
	Filter      map[string]string `json:"filter,omitempty"`
}

// AutoSetupResult represents auto-setup outcome
type AutoSetupResult struct {
	TotalScanned      int                      `json:"total_scanned"`
	SuccessfullySetup int                      `json:"successfully_setup"`
	Failed            int                      `json:"failed"`
	SetupControllers  []*SetupControllerResult `json:"setup_controllers"`
	Errors            []string                 `json:"errors,omitempty"`
}

// SetupControllerResult represents the setup outcome for one instrument
type SetupControllerResult struct {
	ControllerID   string                `json:"controller_id"`
	ConnectionType model.ConnectionType  `json:"connection_type"`
	Brand          model.ControllerBrand `json:"brand"`
	Model          string                `json:"model"`
	Status         string                `json:"status"`
	Error          string                `json:"error,omitempty"`
}
