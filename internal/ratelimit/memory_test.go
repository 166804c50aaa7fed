package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/miniagent/agent-platform/internal/tenant"
)

func testTenant(name string, limit int, window time.Duration) tenant.Tenant {
	return tenant.Tenant{APIKey: name, Name: name, RequestLimit: limit, LimitWindow: window}
}

func TestMemoryLimiterQuota(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()
	ten := testTenant("tenant_a", 5, time.Hour)

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, ten)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be admitted", i+1)
	}

	ok, err := l.Allow(ctx, ten)
	require.NoError(t, err)
	assert.False(t, ok, "request over the limit must be rejected")

	// Rejection does not consume the counter; the tenant stays at the limit.
	ok, err = l.Allow(ctx, ten)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()

	now := time.Now()
	l.now = func() time.Time { return now }

	ten := testTenant("tenant_c", 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, ten)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Allow(ctx, ten)
	require.NoError(t, err)
	require.False(t, ok)

	// Advance past the window: the counter resets and only post-reset
	// requests count.
	now = now.Add(time.Minute)
	for i := 0; i < 2; i++ {
		ok, err = l.Allow(ctx, ten)
		require.NoError(t, err)
		assert.True(t, ok, "request %d after reset", i+1)
	}
	ok, err = l.Allow(ctx, ten)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiterTenantIsolation(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()
	a := testTenant("tenant_a", 3, time.Hour)
	b := testTenant("tenant_b", 3, time.Hour)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, a)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Allow(ctx, a)
	require.NoError(t, err)
	require.False(t, ok, "tenant_a exhausted")

	ok, err = l.Allow(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok, "tenant_b must be unaffected by tenant_a's quota")
}

func TestMemoryLimiterConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()

	const limit = 50
	const extra = 20
	ten := testTenant("tenant_a", limit, time.Hour)

	var admitted atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < limit+extra; i++ {
		g.Go(func() error {
			ok, err := l.Allow(ctx, ten)
			if err != nil {
				return err
			}
			if ok {
				admitted.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(limit), admitted.Load(),
		"exactly the limit must be admitted, never more")
}
