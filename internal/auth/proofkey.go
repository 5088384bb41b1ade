package auth

import "net/http"

// ProofKeyValidator is the pre-dispatch request-origin check. Real
// WOPI clients sign every request with X-WOPI-Proof/X-WOPI-ProofOld
// headers verifiable against a public key published at discovery time; a
// production host plugs in a validator that checks those signatures here.
type ProofKeyValidator interface {
	Validate(r *http.Request) bool
}

// AllowAllValidator is the permissive default: it always accepts. It
// exists so the dispatcher always has a validator to call, and is not
// suitable for a production deployment reachable by untrusted clients.
type AllowAllValidator struct{}

// Validate always returns true.
func (AllowAllValidator) Validate(r *http.Request) bool { return true }
