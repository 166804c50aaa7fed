// Package ratelimit implements per-tenant fixed-window admission control.
//
// Each tenant owns a (count, window_start) pair. A request is rejected once
// count reaches the tenant's request limit; the pair resets when the window
// has fully elapsed. Windows are abrupt: a tenant can burst up to twice its
// limit across a window boundary, which is accepted behavior.
package ratelimit

import (
	"context"

	"github.com/miniagent/agent-platform/internal/tenant"
)

// Limiter decides whether a tenant's request is admitted. Allow must be safe
// under concurrent invocation for the same tenant: the read-reset-check-
// increment sequence is atomic per tenant in every implementation.
type Limiter interface {
	Allow(ctx context.Context, t tenant.Tenant) (bool, error)
}
