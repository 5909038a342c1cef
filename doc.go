// Package caseAuth validates logins for a case-management application and
// establishes the resulting server-side session.
//
// Credentials are checked against an LDAP directory, with an optional fallback
// to locally stored password hashes, or against local hashes alone. A validated
// user is then bound to a Redis-backed session: the MFA gate runs first, then
// effective permissions are computed, a default case is assigned when the user
// has none, and the post-login redirect is chosen so that it never leaves the
// request's own origin.
//
// # Architecture boundaries
//
// caseAuth is the public surface. It exposes [Engine], [Builder], [Config], and
// the collaborator interfaces ([DirectoryVerifier], [UserStore], [CaseStore],
// [PermissionEngine]). Concrete collaborators live in sub-packages (directory,
// password, settings, session, store/postgres) and never import caseAuth back,
// except store/postgres which implements the store interfaces.
//
// # Failure model
//
// Every failure denies the login. Rejections surface as [ErrInvalidCredentials];
// a directory that gives no answer surfaces as [ErrDirectoryUnavailable]. Only
// rejections are audited, with the fixed messages defined in engine_audit.go.
//
// Engine methods are safe for concurrent use after [Builder.Build].
package caseAuth
