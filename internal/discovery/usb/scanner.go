// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"tempctl-service/internal/discovery"
	"tempctl-service/internal/model"
)

// USB class of CDC devices; instruments with native USB ports enumerate as
// CDC-ACM and show up as /dev/ttyACM* on Linux
const usbClassComm = 2

// Scanner implements USB instrument scanning
type Scanner struct {
	logger       *zap.Logger
	knownDevices *InstrumentDatabase
	config       *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout   time.Duration `json:"scan_timeout"`
	EnableDebug   bool          `json:"enable_debug"`
	FilterByClass bool          `json:"filter_by_class"`
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:   10 * time.Second,
			EnableDebug:   false,
			FilterByClass: true,
		}
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewInstrumentDatabase(),
		config:       config,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks if USB scanning is available on this system
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux":
		if _, err := os.Stat("/dev/bus/usb"); err != nil {
			return false
		}
		return true
	case "windows", "darwin":
		return true
	default:
		s.logger.Warn("USB scanning support unknown for OS", zap.String("os", runtime.GOOS))
		return false
	}
}

// Scan performs USB instrument discovery
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredController, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB instrument scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	devices, err := usbCtx.OpenDevices(s.shouldExamineDevice)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	defer func() {
		for _, device := range devices {
			device.Close()
		}
	}()

	s.logger.Info("Found USB devices to examine", zap.Int("device_count", len(devices)))

	var discovered []*discovery.DiscoveredController
	for _, device := range devices {
		select {
		case <-scanCtx.Done():
			return discovered, scanCtx.Err()
		default:
		}

		if controller := s.processDevice(device); controller != nil {
			discovered = append(discovered, controller)
		}
	}

	s.logger.Info("USB scan completed",
		zap.Int("controllers_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)

	return discovered, nil
}

// shouldExamineDevice determines if a device should be examined
func (s *Scanner) shouldExamineDevice(desc *gousb.DeviceDesc) bool {
	if s.knownDevices.IsKnownVendor(desc.Vendor) {
		s.logger.Debug("Found known vendor device",
			zap.String("vendor_id", fmt.Sprintf("0x%04X", desc.Vendor)),
			zap.String("product_id", fmt.Sprintf("0x%04X", desc.Product)),
		)
		return true
	}

	if s.config.FilterByClass && desc.Class == usbClassComm {
		s.logger.Debug("Found CDC device",
			zap.String("vendor_id", fmt.Sprintf("0x%04X", desc.Vendor)),
			zap.String("product_id", fmt.Sprintf("0x%04X", desc.Product)),
		)
		return true
	}

	return false
}

// processDevice builds a discovery result for one USB device. USB-attached
// instruments are driven through their CDC serial device node, so the
// connection info carries a port hint rather than raw endpoints.
func (s *Scanner) processDevice(device *gousb.Device) *discovery.DiscoveredController {
	desc := device.Desc

	controller := &discovery.DiscoveredController{
		ConnectionType: model.ConnectionTypeUSB,
		ConnectionInfo: map[string]interface{}{
			"vendor_id":  fmt.Sprintf("0x%04X", desc.Vendor),
			"product_id": fmt.Sprintf("0x%04X", desc.Product),
			"bus":        desc.Bus,
			"address":    desc.Address,
			"baud_rate":  9600,
		},
		Brand:      model.BrandGeneric,
		Confidence: 0.25,
	}

	if vendor := s.knownDevices.GetVendorInfo(desc.Vendor); vendor != nil {
		controller.Brand = vendor.Brand
		controller.Model = vendor.Name

		if product := vendor.GetProductInfo(desc.Product); product != nil {
			controller.Model = product.Model
			controller.Confidence = product.Confidence
		}
	}

	if serialNumber, err := device.SerialNumber(); err == nil && serialNumber != "" {
		controller.SerialNumber = serialNumber
	}

	if productName, err := device.Product(); err == nil && productName != "" {
		controller.Description = productName
	}

	return controller
}
