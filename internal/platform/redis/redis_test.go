package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/platform/config"
)

func TestNew(t *testing.T) {
	t.Run("empty URL means disabled", func(t *testing.T) {
		client, err := New(config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("unparsable URL fails", func(t *testing.T) {
		_, err := New(config.RedisConfig{URL: "not-a-redis-url"})
		require.Error(t, err)
	})
}
