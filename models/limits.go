package models

import "fmt"

// LimitKey addresses exactly one counter in the shared store. It is the
// composite of tenant, scope (a route name or the tenant-global scope)
// and a window or period identifier, so counters from different tenants,
// routes and intervals never collide.
type LimitKey struct {
	TenantID string
	Scope    string
	Interval string
}

// ScopeTenant is the scope used for tenant-global limits, i.e. limits not
// overridden at the route level.
const ScopeTenant = "tenant"

// RateKey builds the counter key for a fixed rate-limit window. The window
// index is derived from the wall clock so that every replica sharing the
// store lands on the same key.
func RateKey(tenantID, scope string, windowIndex int64) LimitKey {
	return LimitKey{TenantID: tenantID, Scope: scope, Interval: fmt.Sprintf("w%d", windowIndex)}
}

// QuotaKey builds the counter key for a quota period bucket such as
// "2026-09".
func QuotaKey(tenantID, scope, periodKey string) LimitKey {
	return LimitKey{TenantID: tenantID, Scope: scope, Interval: periodKey}
}

// String renders the key in the store's addressing format.
func (k LimitKey) String() string {
	return fmt.Sprintf("tenant:%s:scope:%s:%s", k.TenantID, k.Scope, k.Interval)
}
