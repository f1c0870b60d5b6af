package audit

import "errors"

// Sentinel errors for the façade's refusal tier. Write failures and
// critical integrity failures propagate unchanged from pkg/chainstore.
var (
	// ErrTenantSuspended rejects tool executions and RAIO check-in
	// mirrors for a suspended tenant. Pulses, system recoveries, admin
	// access shields and the suspend shield are still written.
	ErrTenantSuspended = errors.New("audit: tenant is suspended")

	// ErrTenantDestroyed rejects writes for a tombstoned tenant.
	ErrTenantDestroyed = errors.New("audit: tenant has been destroyed")

	// ErrRaioNotAuthorized rejects tool executions whose most recent
	// RAIO check-in is missing or older than 30 days.
	ErrRaioNotAuthorized = errors.New("audit: RAIO check-in missing or expired")

	// ErrInvalidAction rejects admin actions outside view|download|export.
	ErrInvalidAction = errors.New("audit: invalid admin action")
)
