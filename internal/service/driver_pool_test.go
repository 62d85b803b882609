// internal/service/driver_pool_test.go
package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type closableDriver struct {
	fakeDriver
	closed       bool
	disconnected bool
}

func (d *closableDriver) Close() error {
	d.closed = true
	return nil
}

func (d *closableDriver) Disconnect(ctx context.Context) error {
	d.disconnected = true
	return nil
}

func TestDriverPoolStoreAndGet(t *testing.T) {
	pool := NewDriverPool(zap.NewNop())
	id := uuid.New()

	_, ok := pool.Get(id)
	assert.False(t, ok)

	d := &closableDriver{}
	pool.Store(id, d)

	got, ok := pool.Get(id)
	assert.True(t, ok)
	assert.Same(t, d, got.(*closableDriver))
	assert.Equal(t, 1, pool.Size())
}

func TestDriverPoolStoreClosesReplacedDriver(t *testing.T) {
	pool := NewDriverPool(zap.NewNop())
	id := uuid.New()

	first := &closableDriver{}
	second := &closableDriver{}

	pool.Store(id, first)
	pool.Store(id, second)

	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.Equal(t, 1, pool.Size())
}

func TestDriverPoolRemove(t *testing.T) {
	pool := NewDriverPool(zap.NewNop())
	id := uuid.New()

	d := &closableDriver{}
	pool.Store(id, d)
	pool.Remove(id)

	assert.True(t, d.closed)
	_, ok := pool.Get(id)
	assert.False(t, ok)

	// Removing an absent driver is a no-op
	pool.Remove(uuid.New())
}

func TestDriverPoolConnectedIDs(t *testing.T) {
	pool := NewDriverPool(zap.NewNop())
	first := uuid.New()
	second := uuid.New()

	pool.Store(first, &closableDriver{})
	pool.Store(second, &closableDriver{})

	assert.ElementsMatch(t, []uuid.UUID{first, second}, pool.ConnectedIDs())
}

func TestDriverPoolCloseAll(t *testing.T) {
	pool := NewDriverPool(zap.NewNop())

	first := &closableDriver{}
	second := &closableDriver{}
	pool.Store(uuid.New(), first)
	pool.Store(uuid.New(), second)

	pool.CloseAll(context.Background())

	assert.Equal(t, 0, pool.Size())
	assert.True(t, first.disconnected)
	assert.True(t, first.closed)
	assert.True(t, second.disconnected)
	assert.True(t, second.closed)
}
