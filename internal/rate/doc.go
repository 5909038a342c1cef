// Package rate throttles failed logins with Redis fixed-window counters.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Key prefixes:
//   - <prefix>:lu: failed logins per username
//   - <prefix>:li: failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide whether a credential is valid; it only counts outcomes reported to it.
//   - Be imported outside the caseAuth module.
package rate
