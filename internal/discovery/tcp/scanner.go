// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/discovery"
	"tempctl-service/internal/model"
)

// Scanner implements TCP network instrument scanning. The CTC100 listens
// on a raw telnet port when its ethernet interface is enabled.
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for TCP scanner
type Config struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
	Hosts       []string      `json:"hosts"`
	Port        int           `json:"port"`
	ConnTimeout time.Duration `json:"connection_timeout"`
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout: 60 * time.Second,
			Port:        23,
			ConnTimeout: 3 * time.Second,
		}
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable checks if TCP scanning is available
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Hosts) > 0
}

// Scan probes the configured hosts for an instrument command channel
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredController, error) {
	s.logger.Info("Starting TCP network scan", zap.Int("hosts", len(s.config.Hosts)))

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	var discovered []*discovery.DiscoveredController
	for _, host := range s.config.Hosts {
		select {
		case <-scanCtx.Done():
			return discovered, scanCtx.Err()
		default:
		}

		if controller := s.probeHost(host); controller != nil {
			discovered = append(discovered, controller)
		}
	}

	s.logger.Info("TCP scan completed", zap.Int("controllers_found", len(discovered)))
	return discovered, nil
}

// probeHost connects to one host and sends a description query
func (s *Scanner) probeHost(host string) *discovery.DiscoveredController {
	address := net.JoinHostPort(host, fmt.Sprintf("%d", s.config.Port))

	conn, err := net.DialTimeout("tcp", address, s.config.ConnTimeout)
	if err != nil {
		s.logger.Debug("Host not reachable", zap.String("address", address), zap.Error(err))
		return nil
	}
	defer conn.Close()

	deadline := time.Now().Add(s.config.ConnTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil
	}

	if _, err := conn.Write([]byte("description?\n")); err != nil {
		return nil
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return nil
	}

	reply := strings.TrimSpace(string(buf[:n]))
	if !strings.Contains(reply, "CTC100") {
		s.logger.Debug("Host answered but is not a known instrument",
			zap.String("address", address),
			zap.String("reply", reply),
		)
		return nil
	}

	return &discovery.DiscoveredController{
		ConnectionType: model.ConnectionTypeTCP,
		ConnectionInfo: map[string]interface{}{
			"host": host,
			"port": s.config.Port,
		},
		Brand:       model.BrandSRS,
		Model:       "CTC100",
		Description: reply,
		Confidence:  0.95,
	}
}
