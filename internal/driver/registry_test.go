// internal/driver/registry_test.go
package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/pkg/driver"
)

func stubFactory(called *int) DriverFactory {
	return func(controller *model.Controller, connectionConfig interface{}, logger *zap.Logger) (driver.ControllerDriver, error) {
		*called++
		return nil, nil
	}
}

func TestRegistryExactMatch(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var called int
	registry.Register(model.BrandSRS, "CTC100", stubFactory(&called))

	controller := &model.Controller{Brand: model.BrandSRS, Model: "CTC100"}
	_, err := registry.CreateDriver(controller, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestRegistryWildcardFallback(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var called int
	registry.Register(model.BrandSRS, "*", stubFactory(&called))

	// Unknown model falls back to the brand wildcard
	controller := &model.Controller{Brand: model.BrandSRS, Model: "PTC10"}
	_, err := registry.CreateDriver(controller, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestRegistryGenericFallback(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var called int
	registry.Register(model.BrandGeneric, "*", stubFactory(&called))

	controller := &model.Controller{Brand: model.ControllerBrand("UNKNOWN"), Model: "X1"}
	_, err := registry.CreateDriver(controller, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestRegistryNoDriverFound(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	controller := &model.Controller{Brand: model.BrandSRS, Model: "CTC100"}
	_, err := registry.CreateDriver(controller, map[string]interface{}{})
	assert.Error(t, err)
}

func TestRegistryIsSupported(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	RegisterDefaultDrivers(registry, zap.NewNop())

	assert.True(t, registry.IsSupported(model.BrandSRS, "CTC100"))
	assert.True(t, registry.IsSupported(model.BrandSRS, "PTC10")) // brand wildcard
	assert.True(t, registry.IsSupported(model.BrandLakeshore, "331"))
	assert.True(t, registry.IsSupported(model.BrandLakeshore, "332"))
	assert.False(t, registry.IsSupported(model.ControllerBrand("OMEGA"), "CN9000"))
}

func TestRegistryListDriversAndBrands(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	RegisterDefaultDrivers(registry, zap.NewNop())

	keys := registry.ListDrivers()
	assert.Len(t, keys, 5)

	brands := registry.GetSupportedBrands()
	assert.ElementsMatch(t, []model.ControllerBrand{model.BrandSRS, model.BrandLakeshore}, brands)
}
