// ABOUTME: Per-connection authentication state with strict lifecycle rules
// ABOUTME: Candidate credentials are discard-then-set; elevation is scoped with deferred restore

package userauth

// authState holds the privilege tier and candidate credential material
// for one connection. It is exclusively owned by its Session and must
// never be shared across connections.
type authState struct {
	tier       Tier
	username   string
	credential []byte
}

// setCandidate discards any previous candidate material and installs a
// new one. The tier drops back to TierUnknown; only a login check may
// assign a meaningful tier afterwards. The old credential bytes are
// zeroed before being released.
func (a *authState) setCandidate(username string, credential []byte) {
	for i := range a.credential {
		a.credential[i] = 0
	}
	a.tier = TierUnknown
	a.username = username
	a.credential = append([]byte(nil), credential...)
}

// elevate raises the tier to TierAdmin for the duration of an internal
// check and returns a restore function. Callers must defer the restore
// so the prior tier comes back on every exit path, including errors.
func (a *authState) elevate() func() {
	saved := a.tier
	a.tier = TierAdmin
	return func() { a.tier = saved }
}
