// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
)

// CreateProtocol creates a transport based on connection type and
// configuration. USB resolves to the serial transport because every supported
// USB-attached controller enumerates as a CDC-ACM port.
func CreateProtocol(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	switch connectionType {
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB:
		return createSerialProtocol(config, logger)
	case model.ConnectionTypeTCP:
		return createTCPProtocol(config, logger)
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", connectionType)
	}
}

// createSerialProtocol creates a serial transport
func createSerialProtocol(config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	serialConfig := &SerialConfig{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  100 * time.Millisecond,
	}

	if port, ok := config["port"].(string); ok {
		serialConfig.Port = port
	} else {
		return nil, fmt.Errorf("serial port is required")
	}

	if baudRate, ok := config["baud_rate"]; ok {
		serialConfig.BaudRate = toInt(baudRate, serialConfig.BaudRate)
	}
	if dataBits, ok := config["data_bits"]; ok {
		serialConfig.DataBits = toInt(dataBits, serialConfig.DataBits)
	}
	if stopBits, ok := config["stop_bits"]; ok {
		serialConfig.StopBits = toInt(stopBits, serialConfig.StopBits)
	}
	if parity, ok := config["parity"].(string); ok {
		serialConfig.Parity = parity
	}
	if timeout, ok := config["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			serialConfig.Timeout = dur
		}
	}

	logger.Info("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger), nil
}

// createTCPProtocol creates a TCP transport
func createTCPProtocol(config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	tcpConfig := &TCPConfig{
		Port:         23, // CTC100 telnet port
		KeepAlive:    true,
		Timeout:      10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	if host, ok := config["host"].(string); ok {
		tcpConfig.Host = host
	} else {
		return nil, fmt.Errorf("TCP host is required")
	}

	if port, ok := config["port"]; ok {
		tcpConfig.Port = toInt(port, tcpConfig.Port)
	}
	if keepAlive, ok := config["keep_alive"].(bool); ok {
		tcpConfig.KeepAlive = keepAlive
	}
	if timeout, ok := config["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			tcpConfig.Timeout = dur
		}
	}
	if readTimeout, ok := config["read_timeout"].(string); ok {
		if dur, err := time.ParseDuration(readTimeout); err == nil {
			tcpConfig.ReadTimeout = dur
		}
	}
	if writeTimeout, ok := config["write_timeout"].(string); ok {
		if dur, err := time.ParseDuration(writeTimeout); err == nil {
			tcpConfig.WriteTimeout = dur
		}
	}

	logger.Info("Creating TCP transport",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)

	return NewTCPConnection(tcpConfig, logger), nil
}

// ValidateConfig validates configuration for a specific connection type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB:
		return validateSerialConfig(config)
	case model.ConnectionTypeTCP:
		return validateTCPConfig(config)
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// validateSerialConfig validates serial configuration
func validateSerialConfig(config map[string]interface{}) error {
	if _, ok := config["port"].(string); !ok {
		return fmt.Errorf("serial port is required")
	}

	if baudRate, ok := config["baud_rate"]; ok {
		rate := toInt(baudRate, 0)
		if rate == 0 {
			return fmt.Errorf("invalid baud_rate type")
		}

		validRates := []int{300, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}
		valid := false
		for _, validRate := range validRates {
			if rate == validRate {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid baud rate: %d", rate)
		}
	}

	return nil
}

// validateTCPConfig validates TCP configuration
func validateTCPConfig(config map[string]interface{}) error {
	if _, ok := config["host"].(string); !ok {
		return fmt.Errorf("TCP host is required")
	}

	if port, ok := config["port"]; ok {
		portNum := toInt(port, -1)
		if portNum < 1 || portNum > 65535 {
			return fmt.Errorf("invalid port number: %d", portNum)
		}
	}

	return nil
}

// toInt converts the numeric types JSON decoding produces
func toInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}
