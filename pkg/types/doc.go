// Package types defines the data model shared across the audit-chain
// subsystem: the entry kinds that make up a tenant's chain, the
// tenant/anchor/tombstone records the witness and exit subsystems
// produce, and the governance check-in record.
package types
