// Package directory verifies credentials against an LDAP directory with a
// simple bind.
//
// Verification resolves the user's DN (either from a DN template or by a
// service-account search), then binds as that DN with the supplied password.
// An invalid-credentials result, an unknown user, or an empty password is a
// rejection (false, nil). Any other failure is returned as an error so callers
// can tell a rejected credential from an unreachable directory.
package directory
