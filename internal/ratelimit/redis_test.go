package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("RATE_LIMIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RATE_LIMIT_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.prefix = "galenos:test:ratelimit:"
	require.NoError(t, s.Reset(ctx))

	l := New(s, 2, time.Minute)
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "login:1.1.1.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "login:1.1.1.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	require.NoError(t, l.Reset(ctx))
	d, err = l.Allow(ctx, "login:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
