// ABOUTME: Ordered privilege tiers assigned to a connection by the login check
// ABOUTME: Unknown < Fail < User < Admin; comparisons drive every guard decision

package userauth

// Tier is the privilege level of a connection. Tiers are totally
// ordered; guards compare against TierUser and TierAdmin directly.
type Tier int

const (
	// TierUnknown means no login check has produced a result yet.
	TierUnknown Tier = iota
	// TierFail means a login attempt was made and rejected.
	TierFail
	// TierUser is a verified non-admin account.
	TierUser
	// TierAdmin is a verified admin account, or any connection to a
	// database that has no credential table.
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierUnknown:
		return "unknown"
	case TierFail:
		return "fail"
	case TierUser:
		return "user"
	case TierAdmin:
		return "admin"
	default:
		return "invalid"
	}
}
