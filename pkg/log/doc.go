// Package log provides the audit-chain subsystem's structured logging
// on zerolog: a root logger configured once via Init, tenant- and
// receipt-scoped child loggers whose fields match the on-disk silo
// layout, and a Critical event constructor for lockdown-severity
// failures.
package log
