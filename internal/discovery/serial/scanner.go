// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"tempctl-service/internal/discovery"
	"tempctl-service/internal/model"
)

// Scanner implements serial port controller scanning
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for serial scanner
type Config struct {
	ScanTimeout  time.Duration `json:"scan_timeout"`
	ProbeTimeout time.Duration `json:"probe_timeout"`
	PortPatterns []string      `json:"port_patterns"`
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout:  30 * time.Second,
			ProbeTimeout: 2 * time.Second,
			PortPatterns: defaultPortPatterns(),
		}
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan enumerates serial ports and probes each one for a known instrument
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredController, error) {
	s.logger.Info("Starting serial port scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	if len(ports) == 0 {
		s.logger.Info("No serial ports found")
		return []*discovery.DiscoveredController{}, nil
	}

	s.logger.Info("Found serial ports", zap.Strings("ports", ports))

	var discovered []*discovery.DiscoveredController
	for _, port := range s.filterPorts(ports) {
		select {
		case <-scanCtx.Done():
			return discovered, scanCtx.Err()
		default:
		}

		if controller := s.probePort(port); controller != nil {
			discovered = append(discovered, controller)
		}
	}

	s.logger.Info("Serial scan completed", zap.Int("controllers_found", len(discovered)))
	return discovered, nil
}

// filterPorts keeps only ports matching the configured patterns
func (s *Scanner) filterPorts(ports []string) []string {
	if len(s.config.PortPatterns) == 0 {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		for _, pattern := range s.config.PortPatterns {
			if strings.Contains(port, pattern) {
				filtered = append(filtered, port)
				break
			}
		}
	}
	return filtered
}

// probePort tries the known instrument protocols against one port
func (s *Scanner) probePort(portName string) *discovery.DiscoveredController {
	// CTC100 speaks 8N1 and answers a description query
	if reply := s.exchange(portName, &serial.Mode{BaudRate: 9600}, "description?\n"); reply != "" {
		if strings.Contains(reply, "CTC100") {
			return &discovery.DiscoveredController{
				ConnectionType: model.ConnectionTypeSerial,
				ConnectionInfo: map[string]interface{}{
					"port":      portName,
					"baud_rate": 9600,
				},
				Brand:       model.BrandSRS,
				Model:       "CTC100",
				Description: reply,
				Confidence:  0.95,
			}
		}
	}

	// Lakeshore 331/332 speak 7O1 and answer *IDN?
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 7,
		Parity:   serial.OddParity,
		StopBits: serial.OneStopBit,
	}
	if reply := s.exchange(portName, mode, "*IDN?\r\n"); reply != "" {
		if strings.Contains(strings.ToUpper(reply), "LSCI") {
			return &discovery.DiscoveredController{
				ConnectionType: model.ConnectionTypeSerial,
				ConnectionInfo: map[string]interface{}{
					"port":      portName,
					"baud_rate": 9600,
					"data_bits": 7,
					"parity":    "odd",
				},
				Brand:        model.BrandLakeshore,
				Model:        lakeshoreModelFromIDN(reply),
				Description:  reply,
				Confidence:   0.95,
				SerialNumber: lakeshoreSerialFromIDN(reply),
			}
		}
	}

	return nil
}

// exchange opens a port, sends one command and returns whatever the
// instrument sends back within the probe timeout
func (s *Scanner) exchange(portName string, mode *serial.Mode, command string) string {
	port, err := serial.Open(portName, mode)
	if err != nil {
		s.logger.Debug("Failed to open port for probe",
			zap.String("port", portName),
			zap.Error(err),
		)
		return ""
	}
	defer port.Close()

	if err := port.SetReadTimeout(s.config.ProbeTimeout); err != nil {
		return ""
	}

	if _, err := port.Write([]byte(command)); err != nil {
		return ""
	}

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	if err != nil || n == 0 {
		return ""
	}

	return strings.TrimSpace(string(buf[:n]))
}

// lakeshoreModelFromIDN extracts the model from an identification reply,
// e.g. "LSCI,MODEL332S,123456,032301"
func lakeshoreModelFromIDN(reply string) string {
	parts := strings.Split(reply, ",")
	if len(parts) >= 2 {
		return strings.TrimPrefix(strings.TrimSpace(parts[1]), "MODEL")
	}
	return "331"
}

// lakeshoreSerialFromIDN extracts the serial number from an identification reply
func lakeshoreSerialFromIDN(reply string) string {
	parts := strings.Split(reply, ",")
	if len(parts) >= 3 {
		return strings.TrimSpace(parts[2])
	}
	return ""
}

// defaultPortPatterns returns likely instrument port names per platform
func defaultPortPatterns() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"COM"}
	case "darwin":
		return []string{"cu.usbserial", "cu.usbmodem"}
	default:
		return []string{"ttyUSB", "ttyACM", "ttyS"}
	}
}
