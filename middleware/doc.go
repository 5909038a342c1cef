// Package middleware guards gin routes with the session established at login.
//
// # Guards
//
//   - [RequireLogin] loads the session named by the session cookie and
//     rejects requests whose session has no principal.
//   - [RequirePermission] runs after RequireLogin and checks one permission
//     name against the session's effective permissions.
//
// Both guards expect gin-contrib/sessions middleware to be installed on the
// route so the session id cookie can be read.
//
// # Architecture boundaries
//
// This package only reads session state. It never creates sessions, verifies
// credentials, or computes permissions; those decisions were made when the
// session was established.
package middleware
