// Package jwt verifies identity tokens issued by a trusted external identity
// provider. A verified token names a login that the engine resolves and logs
// in without the local MFA gate, since the provider already performed it.
package jwt
