// Package handler exposes the caseAuth login flows over HTTP with gin.
//
// The browser only ever holds an opaque session id in a signed cookie; all
// login state lives in the engine's session store. Every failed login gets
// the same 401 body so responses never reveal whether an account exists.
package handler
