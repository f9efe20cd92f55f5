package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts, err := options(ClientConfig{Addr: "localhost:6379", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, defaultPoolSize, opts.PoolSize)
	assert.Nil(t, opts.TLSConfig)

	opts, err = options(ClientConfig{Addr: "rediss://:secret@cache.example:6380/1", PoolSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "cache.example:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 1, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.NotNil(t, opts.TLSConfig)

	_, err = options(ClientConfig{Addr: "redis://host:notaport/x"})
	assert.Error(t, err)
}
