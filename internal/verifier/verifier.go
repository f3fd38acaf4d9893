// Package verifier holds adapters for the external credential verifier.
//
// The verifier performs the actual password check and keeps its own internal
// notion of "this identity is locked" that can drift from the lockout
// engine's view. The engine never assumes the verifier's cache is coherent;
// it invalidates it whenever a lockout is cleared and treats failures of
// that invalidation as non-fatal.
package verifier

import "context"

// CredentialVerifier is the contract the lockout engine depends on.
type CredentialVerifier interface {
	// Verify checks the credential. Returns models.ErrInvalidCredentials on a
	// bad credential, models.ErrVerifierUnavailable when the verifier cannot
	// be reached.
	Verify(ctx context.Context, identity, password string) error

	// InvalidateLockoutCache asks the verifier to discard any cached lockout
	// state for the identity. Safe to call redundantly.
	InvalidateLockoutCache(ctx context.Context, identity string) error

	// ResetConnection drops any cached connection to the verifier. Coarse,
	// connection-level; identity-scoped invalidation alone has been observed
	// to be insufficient.
	ResetConnection()
}
