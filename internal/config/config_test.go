// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file in the test directory; defaults plus env vars must be a
	// complete configuration
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8086", cfg.Server.Port)
	assert.Equal(t, "tempctl-service", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)

	assert.Equal(t, 2*time.Second, cfg.Controller.CommandTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Controller.TuneTimeout)
	assert.Contains(t, cfg.Controller.SupportedBrands, "SRS")
	assert.Contains(t, cfg.Controller.SupportedBrands, "LAKESHORE")

	// CTC100 USB default framing
	assert.Equal(t, 9600, cfg.Controller.DefaultPort.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Controller.DefaultPort.Serial.DataBits)
	assert.Equal(t, "none", cfg.Controller.DefaultPort.Serial.Parity)
	assert.Equal(t, 23, cfg.Controller.DefaultPort.TCP.Port)

	assert.True(t, cfg.Polling.Enabled)
	assert.Equal(t, 30, cfg.Polling.RetentionDays)
}

func TestValidation(t *testing.T) {
	valid := &Config{
		Server:     ServerConfig{Host: "0.0.0.0", Port: "8086"},
		Database:   DatabaseConfig{Host: "localhost"},
		Controller: ControllerConfig{CommandTimeout: 2 * time.Second},
		Logging:    LoggingConfig{Level: "info"},
		App:        AppConfig{Environment: "development"},
	}
	assert.NoError(t, validate(valid))

	badEnv := *valid
	badEnv.App.Environment = "prod"
	assert.Error(t, validate(&badEnv))

	badLevel := *valid
	badLevel.Logging.Level = "verbose"
	assert.Error(t, validate(&badLevel))

	badTimeout := *valid
	badTimeout.Controller.CommandTimeout = 0
	assert.Error(t, validate(&badTimeout))
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "secret",
			DBName:   "tempctl_service",
			SSLMode:  "disable",
		},
	}

	dsn := cfg.GetDatabaseDSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=tempctl_service")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsDebugEnabled())

	cfg = &Config{App: AppConfig{Environment: "development"}}
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.IsDebugEnabled())

	cfg = &Config{App: AppConfig{Environment: "staging", Debug: true}}
	assert.True(t, cfg.IsDebugEnabled())
}

func TestGetServerAddr(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "127.0.0.1", Port: "9000"}}
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
}
