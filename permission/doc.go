// Package permission provides the case-permission registry, the 64-bit
// permission [Set] stored in session state, and [GroupEngine], the default
// effective-permission engine that unions the masks of a user's groups.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Group masks are
// registered once during engine construction and frozen before the first login.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import caseAuth, session, or directory.
//   - Reassign bit positions after the registry is frozen.
package permission
