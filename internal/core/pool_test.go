package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoolConfig() *Config {
	return &Config{Databases: map[string]DatabaseConfig{
		"main":    {Driver: "sqlite", Database: ":memory:"},
		"reports": {Driver: "sqlite", Database: ":memory:"},
		"legacy":  {Driver: "oracle", RWHost: "db"},
	}}
}

func TestNewConnectionPool_InvalidConfig(t *testing.T) {
	_, err := NewConnectionPool(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConnectionPool(&Config{Databases: map[string]DatabaseConfig{"x": {}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConnectionPool_GetConnection(t *testing.T) {
	pool, err := NewConnectionPool(testPoolConfig())
	require.NoError(t, err)
	defer pool.Close()

	first, err := pool.GetConnection("main")
	require.NoError(t, err)
	second, err := pool.GetConnection("main")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "main", first.Name())

	other, err := pool.GetConnection("reports")
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	fresh, err := pool.GetNewConnection("main")
	require.NoError(t, err)
	defer fresh.Close()
	assert.NotSame(t, first, fresh)

	assert.Equal(t, []string{"legacy", "main", "reports"}, pool.Names())
}

func TestConnectionPool_Errors(t *testing.T) {
	pool, err := NewConnectionPool(testPoolConfig())
	require.NoError(t, err)
	defer pool.Close()

	conn, err := pool.GetConnection("nope")
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrUnknownDatabase)

	conn, err = pool.GetConnection("legacy")
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	conn, err = pool.GetNewConnection("legacy")
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestConnectionPool_ConcurrentGet(t *testing.T) {
	pool, err := NewConnectionPool(testPoolConfig())
	require.NoError(t, err)
	defer pool.Close()

	const workers = 16
	conns := make([]*Connection, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns[i], _ = pool.GetConnection("main")
		}()
	}
	wg.Wait()

	for _, conn := range conns[1:] {
		assert.Same(t, conns[0], conn)
	}
}

func TestConnectionPool_PingAndClose(t *testing.T) {
	pool, err := NewConnectionPool(testPoolConfig())
	require.NoError(t, err)

	ctx := context.Background()
	main, err := pool.GetConnection("main")
	require.NoError(t, err)
	_, err = pool.GetConnection("reports")
	require.NoError(t, err)

	require.NoError(t, main.Connect(ctx))
	require.NoError(t, pool.Ping(ctx))

	require.NoError(t, pool.Close())
	assert.False(t, main.IsConnected())

	assert.ErrorIs(t, pool.Close(), ErrPoolClosed)
	assert.ErrorIs(t, pool.Ping(ctx), ErrPoolClosed)
	_, err = pool.GetConnection("main")
	assert.ErrorIs(t, err, ErrPoolClosed)
	_, err = pool.GetNewConnection("main")
	assert.ErrorIs(t, err, ErrPoolClosed)
}
