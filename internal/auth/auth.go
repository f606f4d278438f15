// Package auth provides the IdentityProvider capability the broker
// dispatcher depends on, plus a concrete file-backed implementation that
// verifies passwords with Argon2.
package auth

import "errors"

// Sentinel errors returned by IdentityProvider.Authenticate. The
// dispatcher treats all three identically (CONNACK NotAuthorized,
// Disconnect) but logs them differently.
var (
	ErrUserNotFound    = errors.New("auth: user not found")
	ErrInvalidPassword = errors.New("auth: invalid password")
	ErrProvider        = errors.New("auth: identity provider failure")
)

// IdentityProvider is the capability the dispatcher consumes to verify a
// CONNECT packet's username/password. It is a Go interface, not an
// external black box: this package ships the one concrete implementation
// the broker needs, but the dispatcher only ever depends on this
// interface.
type IdentityProvider interface {
	Authenticate(username, password string) error
}
