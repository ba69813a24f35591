// ABOUTME: Unit tests for per-connection auth state lifecycle
// ABOUTME: Covers discard-then-set candidate replacement and scoped elevation

package userauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetCandidate_ReplacesEverything(t *testing.T) {
	var st authState
	st.setCandidate("alice", []byte("secret-a"))
	st.tier = TierAdmin

	st.setCandidate("bob", []byte("secret-b"))

	assert.Equal(t, TierUnknown, st.tier, "tier must reset on replacement")
	assert.Equal(t, "bob", st.username)
	assert.Equal(t, []byte("secret-b"), st.credential)
}

func TestSetCandidate_ZeroesOldCredential(t *testing.T) {
	var st authState
	st.setCandidate("alice", []byte("secret-a"))
	old := st.credential

	st.setCandidate("bob", []byte("secret-b"))

	for i, b := range old {
		assert.Zerof(t, b, "old credential byte %d not zeroed", i)
	}
}

func TestSetCandidate_CopiesInput(t *testing.T) {
	var st authState
	cred := []byte("secret")
	st.setCandidate("alice", cred)

	cred[0] = 'X'
	assert.Equal(t, []byte("secret"), st.credential, "state must own its own copy")
}

func TestElevate_RestoresPriorTier(t *testing.T) {
	var st authState
	st.tier = TierFail

	restore := st.elevate()
	assert.Equal(t, TierAdmin, st.tier)
	restore()
	assert.Equal(t, TierFail, st.tier)
}

func TestElevate_Nested(t *testing.T) {
	var st authState
	st.tier = TierUser

	outer := st.elevate()
	inner := st.elevate()
	inner()
	assert.Equal(t, TierAdmin, st.tier)
	outer()
	assert.Equal(t, TierUser, st.tier)
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, TierUnknown < TierFail)
	assert.True(t, TierFail < TierUser)
	assert.True(t, TierUser < TierAdmin)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "unknown", TierUnknown.String())
	assert.Equal(t, "fail", TierFail.String())
	assert.Equal(t, "user", TierUser.String())
	assert.Equal(t, "admin", TierAdmin.String())
	assert.Equal(t, "invalid", Tier(42).String())
}
