// Package tenant holds the static API key registry. The registry is built
// once at startup and read-only afterwards; tenants are configuration, not
// rows in the primary store.
package tenant

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Tenant is an isolated customer context with its rate-limit policy.
type Tenant struct {
	APIKey       string
	Name         string
	RequestLimit int
	LimitWindow  time.Duration
}

type Registry struct {
	tenants map[string]Tenant
}

func NewRegistry(tenants []Tenant) *Registry {
	m := make(map[string]Tenant, len(tenants))
	for _, t := range tenants {
		m[t.APIKey] = t
	}
	return &Registry{tenants: m}
}

// Lookup resolves an API key to its tenant. The second return is false for
// unrecognized keys.
func (r *Registry) Lookup(apiKey string) (Tenant, bool) {
	t, ok := r.tenants[apiKey]
	return t, ok
}

// Parse builds the tenant list from a spec string of the form
// "apiKey:requestLimit:window,apiKey:requestLimit:window,...", where window
// uses Go duration syntax (e.g. "1h", "24h", "1m").
func Parse(spec string) ([]Tenant, error) {
	var tenants []Tenant
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, errors.Newf("tenant entry %q: want apiKey:limit:window", entry)
		}
		limit, err := strconv.Atoi(parts[1])
		if err != nil || limit <= 0 {
			return nil, errors.Newf("tenant entry %q: request limit must be a positive integer", entry)
		}
		window, err := time.ParseDuration(parts[2])
		if err != nil || window <= 0 {
			return nil, errors.Newf("tenant entry %q: invalid limit window", entry)
		}
		tenants = append(tenants, Tenant{
			APIKey:       parts[0],
			Name:         parts[0],
			RequestLimit: limit,
			LimitWindow:  window,
		})
	}
	if len(tenants) == 0 {
		return nil, errors.New("no tenants configured")
	}
	return tenants, nil
}
