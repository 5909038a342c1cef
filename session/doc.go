// Package session persists per-login session state in Redis.
//
// A session is a Redis hash keyed by "<prefix>:<session id>". It carries the
// logged-in username, the bound principal, the effective permission mask, the
// MFA-verified flag, and the current case descriptor.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [State] model. It
// does NOT validate credentials, compute permissions, or pick redirects; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import caseAuth, permission, or directory (no upward imports).
//   - Store credential material in [State] fields.
package session
